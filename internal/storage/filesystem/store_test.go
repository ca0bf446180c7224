package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcode/backend/internal/domain"
)

func newCode(id, code string, created time.Time, days int) *domain.AccessCode {
	return &domain.AccessCode{
		ID:         id,
		Code:       code,
		ExpiryDays: days,
		CreatedAt:  created,
		ExpiresAt:  created.AddDate(0, 0, days),
	}
}

func TestStore_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "accessCodes.json")
	s, err := NewStore(path)
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Date(2024, 3, 23, 12, 0, 0, 0, time.UTC)

	// 文件在创建时初始化为空列表
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))

	require.NoError(t, s.CreateAccessCode(ctx, newCode("1", "LONGCODE", now, 7)))
	require.NoError(t, s.CreateAccessCode(ctx, newCode("2", "SHORTONE", now, 1)))
	assert.ErrorIs(t, s.CreateAccessCode(ctx, newCode("3", "LONGCODE", now, 2)), domain.ErrAccessCodeExists)

	t.Run("list sorted by expiry", func(t *testing.T) {
		list, err := s.ListAccessCodes(ctx, now)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "SHORTONE", list[0].Code)
		assert.Equal(t, "LONGCODE", list[1].Code)
	})

	t.Run("reload from disk", func(t *testing.T) {
		reopened, err := NewStore(path)
		require.NoError(t, err)
		got, err := reopened.GetAccessCodeByCode(ctx, "LONGCODE", now)
		require.NoError(t, err)
		assert.Equal(t, "1", got.ID)
		assert.Equal(t, 7, got.ExpiryDays)
	})

	t.Run("expired codes are hidden and swept", func(t *testing.T) {
		later := now.AddDate(0, 0, 2)
		_, err := s.GetAccessCodeByCode(ctx, "SHORTONE", later)
		assert.ErrorIs(t, err, domain.ErrAccessCodeNotFound)

		n, err := s.DeleteExpiredAccessCodes(ctx, later)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		list, err := s.ListAccessCodes(ctx, now)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("mark used and delete", func(t *testing.T) {
		require.NoError(t, s.MarkAccessCodeUsed(ctx, "1"))
		got, err := s.GetAccessCodeByCode(ctx, "LONGCODE", now)
		require.NoError(t, err)
		assert.True(t, got.IsUsed)

		require.NoError(t, s.DeleteAccessCode(ctx, "1"))
		assert.ErrorIs(t, s.DeleteAccessCode(ctx, "1"), domain.ErrAccessCodeNotFound)
		assert.ErrorIs(t, s.MarkAccessCodeUsed(ctx, "1"), domain.ErrAccessCodeNotFound)
	})

	assert.NoError(t, s.Health(ctx))
}

func TestNewStore_Errors(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, err = NewStore(path)
	assert.Error(t, err)
}
