package mailquery

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcode/backend/internal/domain"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(DefaultOptions())

	t.Run("reset link query", func(t *testing.T) {
		q := b.Build(domain.FlavorResetLink, " user@example.com ", nil)

		assert.Equal(t, "user@example.com", q.Recipient)
		assert.Equal(t, []string{"netflix.com", "netflix.net", "netflix.app"}, q.SenderDomains)
		assert.Equal(t, 3, q.MaxResults)
		assert.Contains(t, q.SubjectTemplates, "Complete your password reset request")
		assert.Nil(t, q.SentAfter)
	})

	t.Run("sign-in code query uses single candidate", func(t *testing.T) {
		q := b.Build(domain.FlavorSignInCode, "user@example.com", nil)

		assert.Equal(t, 1, q.MaxResults)
		assert.Equal(t, []string{"netflix.com"}, q.SenderDomains)
		assert.Contains(t, q.SubjectTemplates, "Netflix: Ihr Login-Code")
	})

	t.Run("unknown flavor panics", func(t *testing.T) {
		assert.Panics(t, func() { b.Build(domain.Flavor("bogus"), "user@example.com", nil) })
	})

	t.Run("templates are copied", func(t *testing.T) {
		q := b.Build(domain.FlavorHousehold, "user@example.com", nil)
		q.SubjectTemplates[0] = "mutated"

		again := b.Build(domain.FlavorHousehold, "user@example.com", nil)
		assert.NotEqual(t, "mutated", again.SubjectTemplates[0])
	})
}

func TestRender(t *testing.T) {
	after := time.Unix(1700000000, 0)
	q := domain.MailQuery{
		SubjectTemplates: []string{"Your Netflix sign-in code", "", "Netflix : Votre code d'identification"},
		SenderDomains:    []string{"netflix.com", "netflix.net"},
		Recipient:        "user@example.com",
		SentAfter:        &after,
	}

	got := Render(q)

	assert.Equal(t,
		`from:(netflix.com OR netflix.net) (subject:"Your Netflix sign-in code" OR subject:"Netflix : Votre code d'identification") to:user@example.com after:1700000000`,
		got,
	)
}

func TestRender_TemplatesAreLiteral(t *testing.T) {
	b := NewBuilder(DefaultOptions())
	got := Render(b.Build(domain.FlavorHousehold, "user@example.com", nil))

	// 模板中的空白与标点必须原样保留
	assert.Contains(t, got, `subject:"Important : Comment mettre à jour votre foyer Netflix"`)
	assert.Contains(t, got, `subject:"รหัสการเข้าถึงชั่วคราวของ Netflix ของคุณ"`)
}

func TestRender_SanitizesRecipient(t *testing.T) {
	got := Render(domain.MailQuery{Recipient: `a@b.com (subject:"x")`})
	assert.Equal(t, "to:a@b.comsubject:x", got)
}

func TestRender_NoSenderClause(t *testing.T) {
	opts := DefaultOptions()
	opts.SenderDomains[domain.FlavorHousehold] = nil
	got := Render(NewBuilder(opts).Build(domain.FlavorHousehold, "user@example.com", nil))

	require.NotEmpty(t, got)
	assert.False(t, strings.HasPrefix(got, "from:"))
}
