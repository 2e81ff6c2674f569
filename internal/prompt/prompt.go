package prompt

import (
	"strings"

	"github.com/nate11235813/SonifiedLLMKit/internal/chat"
)

// TemplateProvider exposes an optional model chat template. Template
// returns an empty string when the model ships none, in which case the
// deterministic fallback layout is used. Placeholders {{content}},
// {{bos}} and {{eos}} are substituted into a non-empty template.
type TemplateProvider interface {
	Template() string
	BOS() string
	EOS() string
}

// StaticTemplate is a TemplateProvider over fixed strings.
type StaticTemplate struct {
	Text     string
	BOSToken string
	EOSToken string
}

func (s StaticTemplate) Template() string { return s.Text }
func (s StaticTemplate) BOS() string      { return s.BOSToken }
func (s StaticTemplate) EOS() string      { return s.EOSToken }

// Render produces the full prompt for one generation call. The system
// prompt is supplied separately from the history so it is never rendered
// twice.
func Render(system string, history []chat.Message, provider TemplateProvider) string {
	body := renderBody(system, history)
	if provider == nil {
		return body
	}
	template := provider.Template()
	if template == "" {
		return body
	}

	rendered := strings.ReplaceAll(template, "{{content}}", body)
	rendered = strings.ReplaceAll(rendered, "{{bos}}", provider.BOS())
	rendered = strings.ReplaceAll(rendered, "{{eos}}", provider.EOS())
	return rendered
}

// renderBody lays out role-tagged sections, each followed by trimmed
// content, terminated by a trailing empty assistant section that prompts
// the model to continue.
func renderBody(system string, history []chat.Message) string {
	var b strings.Builder

	if trimmed := strings.TrimSpace(system); trimmed != "" {
		b.WriteString("<|system|>\n")
		b.WriteString(trimmed)
		b.WriteString("\n\n")
	}

	for _, msg := range history {
		b.WriteString(sectionHeader(msg))
		b.WriteString("\n")
		if trimmed := strings.TrimSpace(msg.Content); trimmed != "" {
			b.WriteString(trimmed)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("<|assistant|>\n")
	return b.String()
}

func sectionHeader(msg chat.Message) string {
	switch msg.Role {
	case chat.RoleSystem:
		return "<|system|>"
	case chat.RoleUser:
		return "<|user|>"
	case chat.RoleAssistant:
		return "<|assistant|>"
	case chat.RoleTool:
		name := strings.TrimSpace(msg.Name)
		if name == "" {
			return "<|tool|>"
		}
		return "<|tool|> " + name
	default:
		return "<|user|>"
	}
}
