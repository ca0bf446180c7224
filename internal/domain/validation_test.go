package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected bool
	}{
		{"Valid email", "test@example.com", true},
		{"Valid email with subdomain", "user@mail.example.com", true},
		{"Valid email with numbers", "user123@example.com", true},
		{"Valid email with dots", "user.name@example.com", true},
		{"Valid email with plus", "user+tag@gmail.com", true},
		{"Valid short local part", "a@example.com", true},
		{"Valid with surrounding spaces", "  user@example.com ", true},
		{"Invalid email - no @", "testexample.com", false},
		{"Invalid email - no domain", "test@", false},
		{"Invalid email - no local part", "@example.com", false},
		{"Invalid email - multiple @", "test@@example.com", false},
		{"Invalid email - empty", "", false},
		{"Invalid email - spaces", "test @example.com", false},
		{"Invalid email - display name", "User <user@example.com>", false},
		{"Invalid email - two addresses", "a@example.com, b@example.com", false},
		{"Invalid email - bare host", "user@localhost", false},
	}

	v := NewEmailValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, v.ValidateEmail(tt.email) == nil)
		})
	}
}

func TestEmailValidator_Errors(t *testing.T) {
	v := NewEmailValidator()

	assert.ErrorIs(t, v.ValidateEmail(strings.Repeat("a", 65)+"@example.com"), ErrLocalPartTooLong)
	assert.ErrorIs(t, v.ValidateEmail(strings.Repeat("a", 250)+"@example.com"), ErrEmailTooLong)
	assert.ErrorIs(t, v.ValidateEmail("nope"), ErrInvalidEmail)
}

func TestValidateAccessCode(t *testing.T) {
	assert.NoError(t, ValidateAccessCode("VIP2024"))
	assert.NoError(t, ValidateAccessCode("team_a-01"))
	assert.ErrorIs(t, ValidateAccessCode("abc"), ErrInvalidCode)
	assert.ErrorIs(t, ValidateAccessCode("has space"), ErrInvalidCode)
	assert.ErrorIs(t, ValidateAccessCode(strings.Repeat("x", 65)), ErrInvalidCode)
}

func TestAccessCode_Usable(t *testing.T) {
	now := time.Date(2025, 3, 23, 12, 0, 0, 0, time.UTC)
	code := &AccessCode{Code: "ABCD1234", ExpiresAt: now.Add(time.Hour)}

	assert.True(t, code.Usable(now))
	assert.False(t, code.Expired(now))

	code.IsUsed = true
	assert.False(t, code.Usable(now))

	code.IsUsed = false
	assert.True(t, code.Expired(now.Add(time.Hour)))
	assert.False(t, code.Usable(now.Add(time.Hour)))
}

func TestParseMIMEType(t *testing.T) {
	assert.Equal(t, MIMEHTML, ParseMIMEType("text/html; charset=UTF-8"))
	assert.Equal(t, MIMEPlain, ParseMIMEType("TEXT/PLAIN"))
	assert.Equal(t, MIMEOther, ParseMIMEType("multipart/alternative; boundary=x"))
	assert.Equal(t, MIMEOther, ParseMIMEType(""))
}

func TestMailMessage_HeaderFirstOccurrenceWins(t *testing.T) {
	msg := &MailMessage{}
	msg.SetHeader("to", "first@example.com")
	msg.SetHeader("To", "second@example.com")

	assert.Equal(t, "first@example.com", msg.Header("TO"))
	assert.Equal(t, "", msg.Header("Date"))
}
