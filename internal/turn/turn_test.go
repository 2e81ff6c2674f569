package turn

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nate11235813/SonifiedLLMKit/internal/engine/enginetest"
	"github.com/nate11235813/SonifiedLLMKit/internal/harmony"
	"github.com/nate11235813/SonifiedLLMKit/internal/tool"
)

// echoTool returns its text argument unchanged.
type echoTool struct {
	delay time.Duration
}

func (e *echoTool) Name() string        { return "echo" }
func (e *echoTool) Description() string { return "Echo the text argument." }

func (e *echoTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"text": map[string]interface{}{"type": "string"},
		},
		"required":             []string{"text"},
		"additionalProperties": false,
	}
}

func (e *echoTool) Invoke(args map[string]interface{}) (*tool.Result, error) {
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	text, _ := args["text"].(string)
	return tool.NewResult(e.Name(), text, nil), nil
}

// failingTool always errors.
type failingTool struct{}

func (f *failingTool) Name() string                   { return "flaky" }
func (f *failingTool) Description() string            { return "Always fails." }
func (f *failingTool) Schema() map[string]interface{} { return map[string]interface{}{"type": "object"} }
func (f *failingTool) Invoke(args map[string]interface{}) (*tool.Result, error) {
	return nil, fmt.Errorf("backend unavailable")
}

func echoToolbox(t *testing.T, tools ...tool.Tool) *tool.Toolbox {
	t.Helper()
	box := tool.NewToolbox()
	if len(tools) == 0 {
		tools = []tool.Tool{&echoTool{}}
	}
	for _, impl := range tools {
		require.NoError(t, box.Register(impl))
	}
	return box
}

func collect(ch <-chan harmony.Event) []harmony.Event {
	var out []harmony.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []harmony.Event) []harmony.EventType {
	out := make([]harmony.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func tokenText(events []harmony.Event) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Type == harmony.EventTypeToken {
			b.WriteString(ev.Token)
		}
	}
	return b.String()
}

const toolCallJSON = `{"tool":{"name":"echo","arguments":{"text":"hi"}}}`

func TestTurn_PlainTextTurn(t *testing.T) {
	eng := enginetest.NewScripted(enginetest.TextLeg("Hello", " there"))
	turn := New(eng, Request{System: "Be brief.", History: nil})

	events := collect(turn.Events(context.Background()))
	require.Equal(t, []harmony.EventType{
		harmony.EventTypeToken,
		harmony.EventTypeToken,
		harmony.EventTypeMetrics,
		harmony.EventTypeDone,
	}, eventTypes(events))
	assert.Equal(t, "Hello there", tokenText(events))
	assert.True(t, events[2].Metrics.Success)
}

func TestTurn_ToolRoundTrip(t *testing.T) {
	early := harmony.Metrics{TTFBMillis: 5}
	eng := enginetest.NewScripted(
		enginetest.Leg{
			Chunks: []string{"before ", `{"tool":{"name":"echo",`, `"arguments":{"text":"hi"}}}`, " after"},
			Early:  &early,
		},
		enginetest.TextLeg(" after"),
	)
	turn := New(eng, Request{
		System:  "Be brief.",
		Toolbox: echoToolbox(t),
	})

	events := collect(turn.Events(context.Background()))
	require.Equal(t, []harmony.EventType{
		harmony.EventTypeMetrics,
		harmony.EventTypeToken,
		harmony.EventTypeToolCall,
		harmony.EventTypeToolResult,
		harmony.EventTypeToken,
		harmony.EventTypeMetrics,
		harmony.EventTypeDone,
	}, eventTypes(events))

	assert.Equal(t, 5, events[0].Metrics.TTFBMillis)
	assert.Equal(t, "before ", events[1].Token)
	assert.Equal(t, "echo", events[2].ToolCall.Name)
	assert.Equal(t, map[string]interface{}{"text": "hi"}, events[2].ToolCall.Arguments)

	result := events[3].ToolResult
	require.NotNil(t, result)
	assert.Equal(t, "echo", result.Name)
	assert.Equal(t, "hi", result.Content)
	assert.False(t, result.IsError())

	assert.Equal(t, " after", events[4].Token)
	assert.True(t, events[5].Metrics.Success)

	// The resumed prompt carries the tool-role message.
	prompts := eng.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "<|system|>")
	assert.NotContains(t, prompts[0], "<|tool|>")
	assert.Contains(t, prompts[1], "<|tool|> echo")
	assert.Contains(t, prompts[1], "hi")
}

func TestTurn_UnknownToolStillReachesDone(t *testing.T) {
	eng := enginetest.NewScripted(
		enginetest.TextLeg(`{"tool":{"name":"teleport","arguments":{}}}`),
		enginetest.TextLeg("cannot do that"),
	)
	turn := New(eng, Request{Toolbox: echoToolbox(t)})

	events := collect(turn.Events(context.Background()))
	require.Equal(t, []harmony.EventType{
		harmony.EventTypeToolCall,
		harmony.EventTypeToolResult,
		harmony.EventTypeToken,
		harmony.EventTypeMetrics,
		harmony.EventTypeDone,
	}, eventTypes(events))

	result := events[1].ToolResult
	require.True(t, result.IsError())
	assert.Equal(t, "unknown_tool", result.Metadata[tool.MetaErrorCode])
}

func TestTurn_InvalidArgumentsBecomeErrorResult(t *testing.T) {
	eng := enginetest.NewScripted(
		enginetest.TextLeg(`{"tool":{"name":"echo","arguments":{"bogus":1}}}`),
		enginetest.TextLeg("sorry"),
	)
	turn := New(eng, Request{Toolbox: echoToolbox(t)})

	events := collect(turn.Events(context.Background()))
	var result *tool.Result
	for _, ev := range events {
		if ev.Type == harmony.EventTypeToolResult {
			result = ev.ToolResult
		}
	}
	require.NotNil(t, result)
	require.True(t, result.IsError())
	assert.Equal(t, "invalid_arguments", result.Metadata[tool.MetaErrorCode])
	assert.Equal(t, harmony.EventTypeDone, events[len(events)-1].Type)
}

func TestTurn_MissingToolboxBecomesErrorResult(t *testing.T) {
	eng := enginetest.NewScripted(
		enginetest.TextLeg(toolCallJSON),
		enginetest.TextLeg("no tools here"),
	)
	turn := New(eng, Request{})

	events := collect(turn.Events(context.Background()))
	var result *tool.Result
	for _, ev := range events {
		if ev.Type == harmony.EventTypeToolResult {
			result = ev.ToolResult
		}
	}
	require.NotNil(t, result)
	require.True(t, result.IsError())
	assert.Equal(t, "no_toolbox", result.Metadata[tool.MetaErrorCode])
}

func TestTurn_FailingToolBecomesErrorResult(t *testing.T) {
	eng := enginetest.NewScripted(
		enginetest.TextLeg(`{"tool":{"name":"flaky","arguments":{}}}`),
		enginetest.TextLeg("tool trouble"),
	)
	turn := New(eng, Request{Toolbox: echoToolbox(t, &failingTool{})})

	events := collect(turn.Events(context.Background()))
	var result *tool.Result
	for _, ev := range events {
		if ev.Type == harmony.EventTypeToolResult {
			result = ev.ToolResult
		}
	}
	require.NotNil(t, result)
	require.True(t, result.IsError())
	assert.Equal(t, "tool_failed", result.Metadata[tool.MetaErrorCode])
	assert.Equal(t, "backend unavailable", result.Metadata[tool.MetaErrorDetail])
	assert.Equal(t, harmony.EventTypeDone, events[len(events)-1].Type)
}

func TestTurn_FatalEngineFailure(t *testing.T) {
	eng := enginetest.NewScripted(enginetest.Leg{
		Chunks: []string{"boom "},
		Fatal:  true,
	})
	turn := New(eng, Request{})

	events := collect(turn.Events(context.Background()))
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, harmony.EventTypeError, last.Type)
	require.Error(t, last.Err)

	for _, ev := range events {
		assert.NotEqual(t, harmony.EventTypeDone, ev.Type)
	}
}

func TestTurn_CancelMidGeneration(t *testing.T) {
	chunks := make([]string, 50)
	for i := range chunks {
		chunks[i] = "x "
	}
	eng := enginetest.NewScripted(enginetest.Leg{
		Chunks:     chunks,
		ChunkDelay: 5 * time.Millisecond,
	})
	turn := New(eng, Request{})

	ctx, cancel := context.WithCancel(context.Background())
	stream := turn.Events(ctx)

	var events []harmony.Event
	for ev := range stream {
		events = append(events, ev)
		if ev.Type == harmony.EventTypeToken && len(events) == 1 {
			cancel()
		}
	}
	cancel()

	require.NotEmpty(t, events)
	assert.Equal(t, harmony.EventTypeDone, events[len(events)-1].Type)
	metrics := events[len(events)-2]
	require.Equal(t, harmony.EventTypeMetrics, metrics.Type)
	assert.False(t, metrics.Metrics.Success)
	for _, ev := range events {
		assert.NotEqual(t, harmony.EventTypeError, ev.Type)
	}
	// Cancellation stops generation well before the script runs out.
	assert.Less(t, len(events), len(chunks))
}

func TestTurn_CancelDuringToolExecution(t *testing.T) {
	eng := enginetest.NewScripted(
		enginetest.TextLeg(toolCallJSON),
		enginetest.TextLeg("never streamed"),
	)
	turn := New(eng, Request{
		Toolbox: echoToolbox(t, &echoTool{delay: 50 * time.Millisecond}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := turn.Events(ctx)

	var events []harmony.Event
	for ev := range stream {
		events = append(events, ev)
		if ev.Type == harmony.EventTypeToolCall {
			cancel()
		}
	}

	require.Equal(t, []harmony.EventType{
		harmony.EventTypeToolCall,
		harmony.EventTypeToolResult,
		harmony.EventTypeMetrics,
		harmony.EventTypeDone,
	}, eventTypes(events))
	assert.False(t, events[2].Metrics.Success)
	// The cancelled turn never starts its second leg.
	assert.Len(t, eng.Prompts(), 1)
}

func TestTurn_SecondLegCallRendersAsText(t *testing.T) {
	eng := enginetest.NewScripted(
		enginetest.TextLeg(toolCallJSON),
		enginetest.TextLeg("again: ", toolCallJSON),
	)
	turn := New(eng, Request{Toolbox: echoToolbox(t)})

	events := collect(turn.Events(context.Background()))

	callCount := 0
	for _, ev := range events {
		if ev.Type == harmony.EventTypeToolCall {
			callCount++
		}
	}
	assert.Equal(t, 1, callCount)

	text := tokenText(events)
	assert.Contains(t, text, "again: ")
	assert.Contains(t, text, `"name":"echo"`)
	assert.Equal(t, harmony.EventTypeDone, events[len(events)-1].Type)
}

func TestTurn_TrailingPartialMarkerIsFlushed(t *testing.T) {
	eng := enginetest.NewScripted(enginetest.TextLeg(`see {"to`))
	turn := New(eng, Request{})

	events := collect(turn.Events(context.Background()))
	assert.Equal(t, `see {"to`, tokenText(events))
	assert.Equal(t, harmony.EventTypeDone, events[len(events)-1].Type)
}

func TestTurn_IDsAreUnique(t *testing.T) {
	eng := enginetest.NewScripted()
	a := New(eng, Request{})
	b := New(eng, Request{})
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
