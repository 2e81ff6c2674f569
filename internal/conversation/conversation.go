package conversation

import (
	"context"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/nate11235813/SonifiedLLMKit/internal/chat"
	"github.com/nate11235813/SonifiedLLMKit/internal/concurrency"
	"github.com/nate11235813/SonifiedLLMKit/internal/engine"
	"github.com/nate11235813/SonifiedLLMKit/internal/harmony"
	"github.com/nate11235813/SonifiedLLMKit/internal/logger"
	"github.com/nate11235813/SonifiedLLMKit/internal/prompt"
	"github.com/nate11235813/SonifiedLLMKit/internal/tool"
	"github.com/nate11235813/SonifiedLLMKit/internal/turn"
)

// Options configure each Ask call.
type Options struct {
	Generation engine.Options
	Toolbox    *tool.Toolbox
	Template   prompt.TemplateProvider
}

// Conversation holds the ordered message list across turns. The system
// message is kept apart from the history and supplied to each turn as its
// system prompt, so it is never rendered twice.
type Conversation struct {
	mu       sync.Mutex
	id       string
	system   string
	messages []chat.Message
}

func New(system string) *Conversation {
	return &Conversation{
		id:     ulid.Make().String(),
		system: strings.TrimSpace(system),
	}
}

func (c *Conversation) ID() string {
	return c.id
}

// Reset clears the history and optionally reseeds the system message.
func (c *Conversation) Reset(system string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.system = strings.TrimSpace(system)
}

// History returns a copy of the non-system messages.
func (c *Conversation) History() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) System() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.system
}

// Ask appends the user message immediately (history reflects the question
// even if generation fails), runs one turn over a snapshot of the
// history, and forwards its events. An assistant message is appended only
// when the turn's final metrics succeeded and the accumulated text is
// non-empty; a cancelled or failed turn leaves only the user message
// behind.
func (c *Conversation) Ask(ctx context.Context, eng engine.Engine, text string, opts Options) (*turn.Turn, <-chan harmony.Event) {
	c.mu.Lock()
	c.messages = append(c.messages, chat.User(text))
	history := make([]chat.Message, len(c.messages))
	copy(history, c.messages)
	system := c.system
	c.mu.Unlock()

	ctx = logger.WithConversationID(ctx, c.id)
	t := turn.New(eng, turn.Request{
		System:   system,
		History:  history,
		Options:  opts.Generation,
		Toolbox:  opts.Toolbox,
		Template: opts.Template,
	})

	inbound := t.Events(ctx)
	out := make(chan harmony.Event, 16)

	concurrency.SafeGo(func() {
		defer close(out)

		var answer strings.Builder
		var lastMetrics *harmony.Metrics
		completed := false

		for ev := range inbound {
			switch ev.Type {
			case harmony.EventTypeToken:
				answer.WriteString(ev.Token)
			case harmony.EventTypeMetrics:
				lastMetrics = ev.Metrics
			case harmony.EventTypeDone:
				completed = true
			}
			out <- ev
		}

		trimmed := strings.TrimSpace(answer.String())
		if completed && lastMetrics != nil && lastMetrics.Success && trimmed != "" {
			c.mu.Lock()
			c.messages = append(c.messages, chat.Assistant(trimmed))
			c.mu.Unlock()
		}
	}, nil)

	return t, out
}
