package content

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcode/backend/internal/domain"
)

func b64(s string) string    { return base64.StdEncoding.EncodeToString([]byte(s)) }
func b64url(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

func multipartMessage() *domain.MailMessage {
	return &domain.MailMessage{
		ID: "m1",
		Parts: []domain.BodyPart{{
			MIMEType: domain.MIMEOther,
			Parts: []domain.BodyPart{
				{MIMEType: domain.MIMEPlain, Data: b64("Your code is 583920")},
				{MIMEType: domain.MIMEHTML, Data: b64url(`<p>Your code is <b>583920</b></p>`)},
			},
		}},
	}
}

func TestDecode_PriorityByFlavor(t *testing.T) {
	msg := multipartMessage()

	t.Run("html first for links", func(t *testing.T) {
		text, typ, err := Decode(msg, []domain.MIMEType{domain.MIMEHTML, domain.MIMEPlain})
		require.NoError(t, err)
		assert.Equal(t, domain.MIMEHTML, typ)
		assert.Equal(t, `<p>Your code is <b>583920</b></p>`, text)
	})

	t.Run("plain first for codes", func(t *testing.T) {
		text, typ, err := Decode(msg, []domain.MIMEType{domain.MIMEPlain, domain.MIMEHTML})
		require.NoError(t, err)
		assert.Equal(t, domain.MIMEPlain, typ)
		assert.Equal(t, "Your code is 583920", text)
	})

	t.Run("falls back to next type", func(t *testing.T) {
		msg := &domain.MailMessage{Parts: []domain.BodyPart{
			{MIMEType: domain.MIMEHTML, Data: b64("<a>x</a>")},
		}}
		_, typ, err := Decode(msg, []domain.MIMEType{domain.MIMEPlain, domain.MIMEHTML})
		require.NoError(t, err)
		assert.Equal(t, domain.MIMEHTML, typ)
	})

	t.Run("empty preferred part is skipped", func(t *testing.T) {
		msg := &domain.MailMessage{Parts: []domain.BodyPart{
			{MIMEType: domain.MIMEHTML, Data: b64("   ")},
			{MIMEType: domain.MIMEOther, Parts: []domain.BodyPart{
				{MIMEType: domain.MIMEHTML, Data: b64("<p>nested</p>")},
			}},
		}}
		text, _, err := Decode(msg, []domain.MIMEType{domain.MIMEHTML})
		require.NoError(t, err)
		assert.Equal(t, "<p>nested</p>", text)
	})
}

func TestDecode_NoBody(t *testing.T) {
	cases := map[string]*domain.MailMessage{
		"nil message":  nil,
		"no parts":     {ID: "x"},
		"only other":   {Parts: []domain.BodyPart{{MIMEType: domain.MIMEOther, Data: b64("zip")}}},
		"invalid data": {Parts: []domain.BodyPart{{MIMEType: domain.MIMEHTML, Data: "!!!"}}},
		"whitespace":   {Parts: []domain.BodyPart{{MIMEType: domain.MIMEPlain, Data: b64("\n\t ")}}},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Decode(msg, []domain.MIMEType{domain.MIMEHTML, domain.MIMEPlain})
			assert.ErrorIs(t, err, domain.ErrNoBody)
		})
	}
}

func TestDecode_UnescapesEntities(t *testing.T) {
	msg := &domain.MailMessage{Parts: []domain.BodyPart{
		{MIMEType: domain.MIMEHTML, Data: b64(`<a href="https://netflix.com/x?a=1&amp;b=2">Reset password &amp; sign in</a>`)},
	}}
	text, _, err := Decode(msg, []domain.MIMEType{domain.MIMEHTML})
	require.NoError(t, err)
	assert.Equal(t, "<a href=\"https://netflix.com/x?a=1&b=2\">Reset password & sign in</a>", text)
}

func TestDecode_Charset(t *testing.T) {
	msg := &domain.MailMessage{Parts: []domain.BodyPart{
		{MIMEType: domain.MIMEPlain, Charset: "ISO-8859-1", Data: b64("caf\xe9 1234")},
	}}
	text, _, err := Decode(msg, []domain.MIMEType{domain.MIMEPlain})
	require.NoError(t, err)
	assert.Equal(t, "café 1234", text)
}

func TestDecodeData_Alphabets(t *testing.T) {
	payload := string([]byte{0xfb, 0xff, 0xbf}) + "<a href=\"https://x/y\">Get Code</a>"

	std, err := DecodeData(base64.StdEncoding.EncodeToString([]byte(payload)))
	require.NoError(t, err)
	url, err := DecodeData(base64.URLEncoding.EncodeToString([]byte(payload)))
	require.NoError(t, err)
	raw, err := DecodeData(base64.RawURLEncoding.EncodeToString([]byte(payload)))
	require.NoError(t, err)

	assert.Equal(t, std, url)
	assert.Equal(t, std, raw)
	assert.Equal(t, payload, string(std))
}

func TestDecodeData_LineWrapped(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString([]byte("Your Netflix sign-in code is 4821"))
	wrapped := enc[:20] + "\r\n" + enc[20:]

	out, err := DecodeData(wrapped)
	require.NoError(t, err)
	assert.Equal(t, "Your Netflix sign-in code is 4821", string(out))
}
