package turn

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/nate11235813/SonifiedLLMKit/internal/chat"
	"github.com/nate11235813/SonifiedLLMKit/internal/concurrency"
	"github.com/nate11235813/SonifiedLLMKit/internal/detect"
	"github.com/nate11235813/SonifiedLLMKit/internal/engine"
	kiterrors "github.com/nate11235813/SonifiedLLMKit/internal/errors"
	"github.com/nate11235813/SonifiedLLMKit/internal/harmony"
	"github.com/nate11235813/SonifiedLLMKit/internal/logger"
	"github.com/nate11235813/SonifiedLLMKit/internal/prompt"
	"github.com/nate11235813/SonifiedLLMKit/internal/tool"
)

// Request configures one turn.
type Request struct {
	System   string
	History  []chat.Message
	Options  engine.Options
	Toolbox  *tool.Toolbox
	Template prompt.TemplateProvider
}

// Turn drives a single user turn through the engine: stream leg 1, detect
// at most one embedded tool call, execute it, splice the result into the
// history, stream leg 2. The outward stream honors the harmony ordering
// contract; every failure short of a fatal engine error travels through
// the stream as data.
type Turn struct {
	id     string
	engine engine.Engine
	req    Request
}

func New(eng engine.Engine, req Request) *Turn {
	return &Turn{
		id:     ulid.Make().String(),
		engine: eng,
		req:    req,
	}
}

func (t *Turn) ID() string {
	return t.id
}

// Cancel delegates to the engine. The engine surfaces cancellation through
// its own failed-final-metrics/done sequence, which the turn forwards.
func (t *Turn) Cancel() {
	t.engine.Cancel()
}

// Events starts the turn and returns its outward stream. The channel is
// closed when the turn finishes; a close without a done event means a
// fatal engine failure (an error event precedes it).
func (t *Turn) Events(ctx context.Context) <-chan harmony.Event {
	out := make(chan harmony.Event, 16)
	concurrency.SafeGo(func() {
		defer close(out)
		t.run(ctx, out)
	}, nil)
	return out
}

func (t *Turn) run(ctx context.Context, out chan<- harmony.Event) {
	stop := context.AfterFunc(ctx, t.engine.Cancel)
	defer stop()

	e := &emitter{out: out}
	log := slog.With("turn_id", t.id)
	if cid := logger.GetConversationID(ctx); cid != "" {
		log = log.With("conversation_id", cid)
	}

	// Leg 1: system + history, no tool message.
	leg1Prompt := prompt.Render(t.req.System, t.req.History, t.req.Template)
	inbound, err := t.engine.Generate(ctx, leg1Prompt, t.req.Options)
	if err != nil {
		log.Error("Generation failed to start", "error", err)
		e.send(harmony.ErrorEvent(kiterrors.Engine("start generation", err)))
		return
	}

	detector := detect.New()
	var call *detect.ToolCall
	sawDone := false

leg1:
	for ev := range inbound {
		switch ev.Type {
		case harmony.EventTypeToken:
			for _, seg := range detector.Feed(ev.Token) {
				if seg.Call != nil {
					call = seg.Call
					e.send(harmony.ToolCallEvent(seg.Call.Name, seg.Call.Arguments))
					break leg1
				}
				if seg.Text != "" {
					e.send(harmony.Token(seg.Text))
				}
			}
		case harmony.EventTypeMetrics:
			e.metrics(*ev.Metrics)
		case harmony.EventTypeDone:
			sawDone = true
			break leg1
		}
	}

	if call == nil {
		if !sawDone {
			log.Error("Generation stream ended without done")
			e.send(harmony.ErrorEvent(kiterrors.Engine("stream ended without done", nil)))
			return
		}
		for _, seg := range detector.Finish() {
			if seg.Text != "" {
				e.send(harmony.Token(seg.Text))
			}
		}
		e.finish(nil)
		return
	}

	// The engine is a single-writer resource: cancel and fully drain leg 1
	// before anything else touches it. Text already forwarded stays
	// forwarded; nothing after the tool call is consumed.
	t.engine.Cancel()
	for range inbound {
	}

	result := t.resolveTool(log, call)
	e.send(harmony.ToolResultEvent(result))

	if ctx.Err() != nil {
		failed := t.engine.Stats()
		failed.Success = false
		e.finish(&failed)
		return
	}

	// Leg 2: history plus the tool-role message, re-rendered. The turn
	// works on its own copy; persisted history stays with the caller.
	resumedHistory := make([]chat.Message, 0, len(t.req.History)+1)
	resumedHistory = append(resumedHistory, t.req.History...)
	resumedHistory = append(resumedHistory, chat.ToolMessage(result.Name, result.Content))

	leg2Prompt := prompt.Render(t.req.System, resumedHistory, t.req.Template)
	inbound2, err := t.engine.Generate(ctx, leg2Prompt, t.req.Options)
	if err != nil {
		log.Error("Resumed generation failed to start", "error", err)
		e.send(harmony.ErrorEvent(kiterrors.Engine("start resumed generation", err)))
		return
	}

	// Fresh detector: one tool round-trip per turn. A second embedded
	// call in leg 2 is rendered back out as text.
	resumed := detect.New()
	sawDone = false

leg2:
	for ev := range inbound2 {
		switch ev.Type {
		case harmony.EventTypeToken:
			for _, seg := range resumed.Feed(ev.Token) {
				e.sendSegmentAsText(seg)
			}
		case harmony.EventTypeMetrics:
			e.metrics(*ev.Metrics)
		case harmony.EventTypeDone:
			sawDone = true
			break leg2
		}
	}

	if !sawDone {
		log.Error("Resumed generation stream ended without done")
		e.send(harmony.ErrorEvent(kiterrors.Engine("resumed stream ended without done", nil)))
		return
	}
	for _, seg := range resumed.Finish() {
		e.sendSegmentAsText(seg)
	}
	e.finish(nil)
}

// resolveTool turns a detected call into exactly one result. Missing
// toolbox, unknown name, bad arguments and tool failures all come back as
// error-shaped results so the turn always continues.
func (t *Turn) resolveTool(log *slog.Logger, call *detect.ToolCall) *tool.Result {
	name := tool.NormalizeToolName(call.Name)

	if t.req.Toolbox == nil {
		return tool.ErrorResult(name, "error: no toolbox configured", "no_toolbox", "")
	}

	impl, err := t.req.Toolbox.Get(name)
	if err != nil {
		log.Warn("Unknown tool requested", "tool", name)
		return tool.ErrorResult(name, "error: unknown tool", "unknown_tool", name)
	}

	args, err := tool.ValidateStrict(impl.Schema(), call.Arguments)
	if err != nil {
		log.Warn("Tool input validation failed", "tool", name, "error", err)
		return tool.ErrorResult(name, "error: invalid arguments", "invalid_arguments", err.Error())
	}

	start := time.Now()
	log.Info("Executing tool", "tool", name)
	result, err := impl.Invoke(args)
	if err != nil || result == nil {
		log.Error("Tool execution failed", "tool", name, "error", err, "duration", time.Since(start))
		detail := ""
		if err != nil {
			detail = err.Error()
		}
		return tool.ErrorResult(name, "error: tool execution failed", "tool_failed", detail)
	}
	log.Info("Tool execution success", "tool", name, "duration", time.Since(start))
	return result
}

// emitter enforces the turn-level metrics invariants: the first snapshot
// observed is forwarded immediately (time-to-first-token), every later
// snapshot replaces the held final, and the held final is flushed
// immediately before done.
type emitter struct {
	out     chan<- harmony.Event
	first   bool
	pending *harmony.Metrics
}

func (e *emitter) send(ev harmony.Event) {
	e.out <- ev
}

func (e *emitter) metrics(m harmony.Metrics) {
	if !e.first {
		e.first = true
		e.send(harmony.MetricsEvent(m))
		return
	}
	held := m
	e.pending = &held
}

// finish flushes the final metrics (the override wins when set) and
// terminates the stream with done.
func (e *emitter) finish(override *harmony.Metrics) {
	if override != nil {
		e.pending = override
	}
	if e.pending != nil {
		e.send(harmony.MetricsEvent(*e.pending))
	} else if !e.first {
		// The engine never reported metrics; keep the contract whole.
		e.send(harmony.MetricsEvent(harmony.Metrics{}))
	}
	e.send(harmony.Done())
}

func (e *emitter) sendSegmentAsText(seg detect.Segment) {
	if seg.Call != nil {
		raw, err := json.Marshal(map[string]interface{}{
			"tool": map[string]interface{}{
				"name":      seg.Call.Name,
				"arguments": seg.Call.Arguments,
			},
		})
		if err == nil {
			e.send(harmony.Token(string(raw)))
		}
		return
	}
	if seg.Text != "" {
		e.send(harmony.Token(seg.Text))
	}
}
