package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcode/backend/internal/auth/jwt"
)

func newTokens() *jwt.Manager {
	return jwt.NewManager("0123456789abcdef0123456789abcdef", "mailcode")
}

func TestAdminAuthenticator_PlainPassword(t *testing.T) {
	a := NewAdminAuthenticator("s3cret", newTokens(), time.Hour)

	assert.NoError(t, a.CheckPassword("s3cret"))
	assert.ErrorIs(t, a.CheckPassword("wrong"), ErrInvalidPassword)
	assert.ErrorIs(t, a.CheckPassword(""), ErrPasswordRequired)
}

func TestAdminAuthenticator_BcryptPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.True(t, IsBcryptHash(hash))

	a := NewAdminAuthenticator(hash, newTokens(), time.Hour)
	assert.NoError(t, a.CheckPassword("s3cret"))
	assert.ErrorIs(t, a.CheckPassword(hash), ErrInvalidPassword)
}

func TestAdminAuthenticator_Disabled(t *testing.T) {
	a := NewAdminAuthenticator("", newTokens(), time.Hour)
	assert.ErrorIs(t, a.CheckPassword("anything"), ErrAdminDisabled)
}

func TestAdminAuthenticator_Login(t *testing.T) {
	tokens := newTokens()
	a := NewAdminAuthenticator("s3cret", tokens, time.Hour)

	token, expiresAt, err := a.Login("s3cret")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))
	assert.NoError(t, a.ValidateToken(token))

	session, _, err := tokens.Issue(jwt.RoleSession, "code", time.Hour)
	require.NoError(t, err)
	assert.ErrorIs(t, a.ValidateToken(session), jwt.ErrWrongRole)

	_, _, err = a.Login("nope")
	assert.ErrorIs(t, err, ErrInvalidPassword)
}
