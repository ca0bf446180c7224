package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcode/backend/internal/domain"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"six digits", "Your code is 583920 valid for 15 minutes", "583920"},
		{"four digits", "Enter 4821 to sign in", "4821"},
		{"first match wins", "1234 then 5678", "1234"},
		{"seven digits skipped", "ref 1234567 code 9876", "9876"},
		{"punctuation boundary", "code:(0042).", "0042"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Code(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("no code", func(t *testing.T) {
		_, err := Code("Your code is 12 and ab12345cd and 1234567")
		assert.ErrorIs(t, err, domain.ErrCodeNotFound)
	})
}

func TestCode_StrippedHTML(t *testing.T) {
	body := `<html><head><style>.c{width:6000px}</style></head>` +
		`<body><p>Enter this code to sign in</p><td class="code">7391</td></body></html>`

	got, err := Code(StripHTML(body))
	require.NoError(t, err)
	assert.Equal(t, "7391", got)

	t.Run("adjacent tags do not merge digits", func(t *testing.T) {
		got, err := Code(StripHTML(`<b>12</b><b>34</b><i>5555</i>`))
		require.NoError(t, err)
		assert.Equal(t, "5555", got)
	})
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hi Ana, your code: 1234 & more", StripHTML(`<p>Hi Ana,</p><p>your code: <b>1234</b> &amp; more</p>`))
}

func TestGreeting(t *testing.T) {
	assert.Equal(t, "Hi Maria,", Greeting("<p>Hi Maria,</p> Let's reset your password"))
	assert.Equal(t, "Hi José,", Greeting("Hi   José"))
	assert.Equal(t, DefaultGreeting, Greeting("Hello there"))
	assert.Equal(t, DefaultGreeting, Greeting("This is Netflix"))
}
