package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateResolverLoadsAllTypes(t *testing.T) {
	tr, err := NewTemplateResolver()
	require.NoError(t, err)

	for _, typ := range notificationTemplateTypes {
		t.Run(typ, func(t *testing.T) {
			content, err := tr.Resolve(typ, TemplateData{
				PRNumber:      "PR-0042",
				RequestorName: "Jane Doe",
				ApproverName:  "Bob Mokoena",
			})
			require.NoError(t, err)

			assert.Contains(t, content.Subject, "PR-0042")
			assert.NotEmpty(t, content.Text)
			assert.NotEmpty(t, content.HTML)
			assert.NotContains(t, content.Text, "<no value>")
			assert.NotContains(t, content.HTML, "<no value>")
		})
	}
}

func TestTemplateResolverUnknownType(t *testing.T) {
	tr, err := NewTemplateResolver()
	require.NoError(t, err)

	_, err = tr.Resolve("pr_teleported", TemplateData{})
	assert.Error(t, err)
}

func TestTemplateOptionalFields(t *testing.T) {
	tr, err := NewTemplateResolver()
	require.NoError(t, err)

	content, err := tr.Resolve("pr_pending_approval", TemplateData{
		PRNumber:      "PR-0007",
		RequestorName: "Jane Doe",
		ApproverName:  "Bob Mokoena",
		Amount:        "LSL 1200.50",
		IsUrgent:      true,
		Notes:         "needs sign-off this week",
	})
	require.NoError(t, err)

	assert.Contains(t, content.Text, "LSL 1200.50")
	assert.Contains(t, content.Text, "URGENT")
	assert.Contains(t, content.HTML, "LSL 1200.50")
}

func TestValidateNoUnexpandedValues(t *testing.T) {
	assert.NoError(t, validateNoUnexpandedValues("all good", "subject", "pr_submitted"))
	assert.Error(t, validateNoUnexpandedValues("hello <no value>", "subject", "pr_submitted"))
	assert.Error(t, validateNoUnexpandedValues("hello {{.Name}}", "subject", "pr_submitted"))
}

func TestFormatRequiredDate(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"", ""},
		{"2026-09-15", "15 Sep 2026"},
		{"09/15/2026", "15 Sep 2026"},
		{"whenever works", "whenever works"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatRequiredDate(tt.raw))
		})
	}
}
