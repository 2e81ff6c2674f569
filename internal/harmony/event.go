package harmony

import "github.com/nate11235813/SonifiedLLMKit/internal/tool"

type EventType string

const (
	EventTypeToken      EventType = "token"
	EventTypeMetrics    EventType = "metrics"
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypeDone       EventType = "done"
	EventTypeError      EventType = "error"
)

// ToolCall is a tool invocation request extracted from generated text.
type ToolCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Event is one element of a turn's outward stream.
//
// The stream obeys a strict ordering contract: at most one early metrics
// event at time-to-first-token, tokens in generation order, at most one
// tool call per turn immediately followed by exactly one tool result,
// exactly one final metrics event strictly before the single terminal done.
// An error event is terminal and is never followed by done.
type Event struct {
	Type       EventType
	Token      string
	Metrics    *Metrics
	ToolCall   *ToolCall
	ToolResult *tool.Result
	Err        error
}

func Token(text string) Event {
	return Event{Type: EventTypeToken, Token: text}
}

func MetricsEvent(m Metrics) Event {
	return Event{Type: EventTypeMetrics, Metrics: &m}
}

func ToolCallEvent(name string, args map[string]interface{}) Event {
	return Event{Type: EventTypeToolCall, ToolCall: &ToolCall{Name: name, Arguments: args}}
}

func ToolResultEvent(res *tool.Result) Event {
	return Event{Type: EventTypeToolResult, ToolResult: res}
}

func Done() Event {
	return Event{Type: EventTypeDone}
}

func ErrorEvent(err error) Event {
	return Event{Type: EventTypeError, Err: err}
}
