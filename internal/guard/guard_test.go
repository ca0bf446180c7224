package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mailcode/backend/internal/domain"
)

func TestCheckRecipient(t *testing.T) {
	accept := []struct {
		header string
		email  string
	}{
		{"<user@example.com>", "user@example.com"},
		{"User <user@example.com>", "user@example.com"},
		{`"Doe, Jane" <Jane.Doe@Example.com>`, " jane.doe@example.com "},
		{"user@example.com", "USER@example.com"},
		{"  USER@EXAMPLE.COM ", "user@example.com"},
	}
	for _, tt := range accept {
		t.Run("accept "+tt.header, func(t *testing.T) {
			assert.NoError(t, CheckRecipient(tt.header, tt.email))
		})
	}

	reject := []struct {
		header string
		email  string
	}{
		{"<other@example.com>", "user@example.com"},
		{"User <user@example.com.evil>", "user@example.com"},
		{"", "user@example.com"},
		{"user@example.com", ""},
		{"user+tag@example.com", "user@example.com"},
		{`"user <user@example.com>" <other@example.net>`, "user@example.com"},
		{`user <user@example.com> <other@example.net>`, "user@example.com"},
	}
	for _, tt := range reject {
		t.Run("reject "+tt.header, func(t *testing.T) {
			assert.ErrorIs(t, CheckRecipient(tt.header, tt.email), domain.ErrUnauthorizedRecipient)
		})
	}
}

func TestBareAddress(t *testing.T) {
	assert.Equal(t, "a@b.com", BareAddress("A <A@B.com>"))
	assert.Equal(t, "a@b.com", BareAddress("a@b.com (comment)"))
	assert.Equal(t, "not an address", BareAddress(" Not An Address "))
	assert.Equal(t, "other@example.net", BareAddress(`"x <a@b.com>" <Other@Example.net>`))
	assert.Equal(t, "c@d.com", BareAddress("broken <a@b.com> <c@d.com>"))
}

func TestCheckFreshness(t *testing.T) {
	now := time.Date(2024, 3, 23, 12, 58, 0, 0, time.UTC)

	assert.NoError(t, CheckFreshness(now.Add(-14*time.Minute-59*time.Second), now, 15*time.Minute))
	assert.NoError(t, CheckFreshness(now.Add(-15*time.Minute), now, 15*time.Minute))
	assert.ErrorIs(t, CheckFreshness(now.Add(-15*time.Minute-1*time.Second), now, 15*time.Minute), domain.ErrExpired)
	assert.ErrorIs(t, CheckFreshness(now.Add(-2*time.Hour), now, 0), domain.ErrExpired)

	t.Run("future timestamps are fresh", func(t *testing.T) {
		assert.NoError(t, CheckFreshness(now.Add(time.Minute), now, 15*time.Minute))
	})
}
