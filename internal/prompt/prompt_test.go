package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nate11235813/SonifiedLLMKit/internal/chat"
)

func TestRender_FallbackLayout(t *testing.T) {
	history := []chat.Message{
		chat.User("What time is it?"),
		chat.Assistant("Let me check."),
		chat.ToolMessage("clock", "2025-03-01T12:00:00Z"),
	}

	got := Render("Be brief.", history, nil)
	want := "<|system|>\n" +
		"Be brief.\n\n" +
		"<|user|>\nWhat time is it?\n\n" +
		"<|assistant|>\nLet me check.\n\n" +
		"<|tool|> clock\n2025-03-01T12:00:00Z\n\n" +
		"<|assistant|>\n"
	assert.Equal(t, want, got)
}

func TestRender_EmptySystemOmitsSection(t *testing.T) {
	got := Render("   ", []chat.Message{chat.User("hi")}, nil)
	assert.Equal(t, "<|user|>\nhi\n\n<|assistant|>\n", got)
}

func TestRender_SystemMessageInHistory(t *testing.T) {
	// A mid-conversation system injection renders as its own section; the
	// turn-level system prompt is separate.
	got := Render("", []chat.Message{chat.System("Switch to French.")}, nil)
	assert.Equal(t, "<|system|>\nSwitch to French.\n\n<|assistant|>\n", got)
}

func TestRender_ToolMessageWithoutName(t *testing.T) {
	got := Render("", []chat.Message{{Role: chat.RoleTool, Content: "out"}}, nil)
	assert.Contains(t, got, "<|tool|>\nout")
}

func TestRender_TemplateSubstitution(t *testing.T) {
	provider := StaticTemplate{
		Text:     "{{bos}}{{content}}{{eos}}",
		BOSToken: "<s>",
		EOSToken: "</s>",
	}
	got := Render("sys", []chat.Message{chat.User("hi")}, provider)
	assert.Equal(t, "<s><|system|>\nsys\n\n<|user|>\nhi\n\n<|assistant|>\n</s>", got)
}

func TestRender_EmptyTemplateFallsBack(t *testing.T) {
	provider := StaticTemplate{BOSToken: "<s>"}
	got := Render("", []chat.Message{chat.User("hi")}, provider)
	assert.Equal(t, "<|user|>\nhi\n\n<|assistant|>\n", got)
}

func TestRender_ContentIsTrimmed(t *testing.T) {
	got := Render("", []chat.Message{chat.User("  padded  ")}, nil)
	assert.Contains(t, got, "<|user|>\npadded\n")
}
