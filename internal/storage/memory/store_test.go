package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcode/backend/internal/domain"
)

func TestStore_AccessCodes(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	code := &domain.AccessCode{ID: "a", Code: "ABCDEFGH", ExpiryDays: 1, CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	require.NoError(t, s.CreateAccessCode(ctx, code))
	assert.ErrorIs(t, s.CreateAccessCode(ctx, code), domain.ErrAccessCodeExists)

	// 调用方修改不影响存储内容
	code.Code = "CHANGED"
	got, err := s.GetAccessCodeByCode(ctx, "ABCDEFGH", now)
	require.NoError(t, err)
	got.IsUsed = true

	again, err := s.GetAccessCodeByCode(ctx, "ABCDEFGH", now)
	require.NoError(t, err)
	assert.False(t, again.IsUsed)

	_, err = s.GetAccessCodeByCode(ctx, "ABCDEFGH", now.Add(25*time.Hour))
	assert.ErrorIs(t, err, domain.ErrAccessCodeNotFound)

	n, err := s.DeleteExpiredAccessCodes(ctx, now.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	list, err := s.ListAccessCodes(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, list)
}
