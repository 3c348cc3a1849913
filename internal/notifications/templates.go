package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"path"
	"regexp"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*
var templatesFS embed.FS

// Content is the rendered email content for one notification.
type Content struct {
	Subject string
	Text    string
	HTML    string
}

// TemplateData is the context every notification template renders with.
// Handlers fill in what applies; templates guard optional fields.
type TemplateData struct {
	PRNumber      string
	RequestorName string
	ApproverName  string
	ActorName     string
	Department    string
	Site          string
	Amount        string
	Description   string
	Notes         string
	IsUrgent      bool
	RequiredBy    string
	URL           string
}

// notificationTemplateTypes lists every template set shipped in the
// binary. Missing files fail at startup, not at send time.
var notificationTemplateTypes = []string{
	"pr_submitted",
	"pr_revision_requested",
	"pr_resubmitted",
	"pr_pending_approval",
	"pr_approved",
	"pr_rejected",
}

// TemplateResolver loads and executes notification templates.
type TemplateResolver struct {
	subjectTemplates map[string]*texttemplate.Template
	textTemplates    map[string]*texttemplate.Template
	htmlTemplates    map[string]*template.Template
}

// NewTemplateResolver creates a resolver with all template sets
// preloaded from the embedded filesystem.
func NewTemplateResolver() (*TemplateResolver, error) {
	resolver := &TemplateResolver{
		subjectTemplates: make(map[string]*texttemplate.Template),
		textTemplates:    make(map[string]*texttemplate.Template),
		htmlTemplates:    make(map[string]*template.Template),
	}

	for _, notifType := range notificationTemplateTypes {
		if err := resolver.loadTemplates(notifType); err != nil {
			return nil, fmt.Errorf("failed to load templates for %s: %w", notifType, err)
		}
	}

	return resolver, nil
}

// loadTemplates loads all three template files for a notification type.
func (tr *TemplateResolver) loadTemplates(notifType string) error {
	baseDir := path.Join("templates", notifType)

	subjectData, err := templatesFS.ReadFile(path.Join(baseDir, "subject.tmpl"))
	if err != nil {
		return fmt.Errorf("failed to read subject template: %w", err)
	}
	subjectTmpl, err := texttemplate.New(notifType + "_subject").Parse(string(subjectData))
	if err != nil {
		return fmt.Errorf("failed to parse subject template: %w", err)
	}
	tr.subjectTemplates[notifType] = subjectTmpl

	textData, err := templatesFS.ReadFile(path.Join(baseDir, "body.txt.tmpl"))
	if err != nil {
		return fmt.Errorf("failed to read text template: %w", err)
	}
	textTmpl, err := texttemplate.New(notifType + "_text").Parse(string(textData))
	if err != nil {
		return fmt.Errorf("failed to parse text template: %w", err)
	}
	tr.textTemplates[notifType] = textTmpl

	// html/template for auto-escaping
	htmlData, err := templatesFS.ReadFile(path.Join(baseDir, "body.html.tmpl"))
	if err != nil {
		return fmt.Errorf("failed to read HTML template: %w", err)
	}
	htmlTmpl, err := template.New(notifType + "_html").Parse(string(htmlData))
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}
	tr.htmlTemplates[notifType] = htmlTmpl

	return nil
}

// Resolve renders subject, text and HTML for a notification type.
func (tr *TemplateResolver) Resolve(notifType string, data TemplateData) (*Content, error) {
	subjectTmpl, ok := tr.subjectTemplates[notifType]
	if !ok {
		return nil, fmt.Errorf("no subject template found for notification type: %s", notifType)
	}
	var subjectBuf bytes.Buffer
	if err := subjectTmpl.Execute(&subjectBuf, data); err != nil {
		return nil, fmt.Errorf("failed to execute subject template: %w", err)
	}
	subject := strings.TrimSpace(subjectBuf.String())

	if err := validateNoUnexpandedValues(subject, "subject", notifType); err != nil {
		return nil, err
	}

	textTmpl, ok := tr.textTemplates[notifType]
	if !ok {
		return nil, fmt.Errorf("no text template found for notification type: %s", notifType)
	}
	var textBuf bytes.Buffer
	if err := textTmpl.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("failed to execute text template: %w", err)
	}
	text := textBuf.String()

	if err := validateNoUnexpandedValues(text, "text body", notifType); err != nil {
		return nil, err
	}

	htmlTmpl, ok := tr.htmlTemplates[notifType]
	if !ok {
		return nil, fmt.Errorf("no HTML template found for notification type: %s", notifType)
	}
	var htmlBuf bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("failed to execute HTML template: %w", err)
	}
	html := htmlBuf.String()

	if err := validateNoUnexpandedValues(html, "HTML body", notifType); err != nil {
		return nil, err
	}

	return &Content{
		Subject: subject,
		Text:    text,
		HTML:    html,
	}, nil
}

var unexpandedPattern = regexp.MustCompile(`\{\{[^}]*\}\}`)

// validateNoUnexpandedValues checks that rendered content contains no
// unexpanded template values. Catching this here keeps "<no value>"
// out of customer-facing email.
func validateNoUnexpandedValues(content, templateName, notificationType string) error {
	if strings.Contains(content, "<no value>") {
		return fmt.Errorf(
			"template validation failed for %s in notification type %s: found unexpanded template value '<no value>'",
			templateName, notificationType)
	}

	if matches := unexpandedPattern.FindAllString(content, -1); len(matches) > 0 {
		return fmt.Errorf(
			"template validation failed for %s in notification type %s: found unexpanded template syntax: %v",
			templateName, notificationType, matches)
	}

	return nil
}
