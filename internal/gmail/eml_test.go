package gmail

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcode/backend/internal/content"
	"mailcode/backend/internal/domain"
	"mailcode/backend/internal/mailquery"
)

const householdHTML = `<p>Hi Ana,</p><a href="https://netflix.com/password/reset?tok=abc">Get Code</a>`

func householdEML(date string) string {
	return strings.Join([]string{
		"From: Netflix <info@account.netflix.com>",
		"To: User <user@example.com>",
		"Subject: Your Netflix temporary access code",
		"Date: " + date,
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=iso-8859-1",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Caf=E9 Get Code",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		base64.StdEncoding.EncodeToString([]byte(householdHTML)),
		"--b1--",
		"",
	}, "\r\n")
}

const otherEML = "From: Someone <a@example.org>\r\n" +
	"To: user@example.com\r\n" +
	"Subject: Your Netflix temporary access code\r\n" +
	"Date: Sat, 23 Mar 2024 12:59:00 +0000\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"phishing 1234\r\n"

func writeDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestEMLDir_ListAndGet(t *testing.T) {
	dir := writeDir(t, map[string]string{
		"older.eml":  householdEML("Sat, 23 Mar 2024 12:40:00 +0000"),
		"newer.eml":  householdEML("Sat, 23 Mar 2024 12:58:00 +0000"),
		"spoof.eml":  otherEML,
		"notes.txt":  "ignored",
		"broken.eml": "",
	})
	tr, err := NewEMLDir(dir, nil)
	require.NoError(t, err)

	q := mailquery.NewBuilder(mailquery.DefaultOptions()).Build(domain.FlavorHousehold, "user@example.com", nil)
	ids, err := tr.ListMessages(context.Background(), mailquery.Render(q), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, ids)

	t.Run("after clause filters", func(t *testing.T) {
		after := time.Date(2024, 3, 23, 12, 50, 0, 0, time.UTC)
		q := mailquery.NewBuilder(mailquery.DefaultOptions()).Build(domain.FlavorHousehold, "user@example.com", &after)
		ids, err := tr.ListMessages(context.Background(), mailquery.Render(q), 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"newer"}, ids)
	})

	t.Run("limit", func(t *testing.T) {
		ids, err := tr.ListMessages(context.Background(), mailquery.Render(q), 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"newer"}, ids)
	})

	msg, err := tr.GetMessage(context.Background(), "newer")
	require.NoError(t, err)
	assert.Equal(t, "User <user@example.com>", msg.Header("To"))
	assert.Equal(t, time.Date(2024, 3, 23, 12, 58, 0, 0, time.UTC), msg.SentAt.UTC())

	body, typ, err := content.Decode(msg, []domain.MIMEType{domain.MIMEHTML, domain.MIMEPlain})
	require.NoError(t, err)
	assert.Equal(t, domain.MIMEHTML, typ)
	assert.Equal(t, householdHTML, body)

	plain, _, err := content.Decode(msg, []domain.MIMEType{domain.MIMEPlain})
	require.NoError(t, err)
	assert.Equal(t, "Café Get Code", strings.TrimSpace(plain))
}

func TestEMLDir_GetMessage_NotFound(t *testing.T) {
	tr, err := NewEMLDir(t.TempDir(), nil)
	require.NoError(t, err)

	for _, id := range []string{"missing", "../etc/passwd", ""} {
		_, err := tr.GetMessage(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
	}
}

func TestNewEMLDir_Invalid(t *testing.T) {
	_, err := NewEMLDir(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestParseFilter(t *testing.T) {
	f := parseFilter(`from:(netflix.com OR netflix.net) (subject:"How to: A" OR subject:"B") to:user@example.com after:1700000000`)
	assert.Equal(t, []string{"netflix.com", "netflix.net"}, f.senders)
	assert.Equal(t, []string{"how to: a", "b"}, f.subjects)
	assert.Equal(t, "user@example.com", f.to)
	assert.Equal(t, int64(1700000000), f.after.Unix())
}
