package template

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	texttmpl "text/template"

	"warehouse-notify/internal/domain"
)

// Service renders channel-specific message bodies from named templates laid
// out as <dir>/base.<ext> plus <dir>/<name>.<ext>. Email is HTML; the text
// channels share the plain-text layout.
type Service struct {
	emailDir string
	textDir  string
}

func NewService(emailDir, textDir string) *Service {
	return &Service{emailDir: emailDir, textDir: textDir}
}

func (s *Service) Render(channel domain.Channel, name string, data map[string]interface{}) (string, error) {
	tmplName := strings.ToLower(name)
	if data == nil {
		data = map[string]interface{}{}
	}

	if channel == domain.ChannelEmail {
		basePath := fmt.Sprintf("%s/base.html", s.emailDir)
		bodyPath := fmt.Sprintf("%s/%s.html", s.emailDir, tmplName)

		tmpl, err := template.ParseFiles(basePath, bodyPath)
		if err != nil {
			return "", fmt.Errorf("parse email templates: %w", err)
		}

		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
			return "", fmt.Errorf("execute email template: %w", err)
		}
		return buf.String(), nil
	}

	basePath := fmt.Sprintf("%s/base.txt", s.textDir)
	bodyPath := fmt.Sprintf("%s/%s.txt", s.textDir, tmplName)

	tmpl, err := texttmpl.ParseFiles(basePath, bodyPath)
	if err != nil {
		return "", fmt.Errorf("parse %s templates: %w", channel, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.txt", data); err != nil {
		return "", fmt.Errorf("execute %s template: %w", channel, err)
	}
	return buf.String(), nil
}

// WrapPlain is the fallback when no template applies: the raw message as-is
// for text channels, a minimal HTML shell for email.
func WrapPlain(channel domain.Channel, message string) string {
	if channel == domain.ChannelEmail {
		return "<html><body><p>" + template.HTMLEscapeString(message) + "</p></body></html>"
	}
	return message
}
