package engine

import (
	"context"

	"github.com/nate11235813/SonifiedLLMKit/internal/harmony"
)

// Options are the generation parameters passed to one engine call.
type Options struct {
	ContextLength int     `json:"context_length"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	MaxTokens     int     `json:"max_tokens"`
	// Seed <= 0 means random.
	Seed int `json:"seed"`
}

// ModelSpec describes the model an engine is asked to load.
type ModelSpec struct {
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
	Quantization  string `json:"quantization,omitempty"`
}

// Engine is the inference backend consumed by the turn orchestrator. The
// orchestrator never inspects engine internals; it relies only on the
// stream contract: zero or more token events, at most one early metrics
// snapshot, exactly one final metrics snapshot, then done. A stream that
// closes without done is a fatal engine failure. Cancellation must stop
// token production within bounded latency and still deliver a failed
// final metrics snapshot followed by done.
//
// Only one generation may be in flight per engine instance at a time.
type Engine interface {
	Load(ctx context.Context, modelPath string, spec ModelSpec) error
	Unload() error
	Generate(ctx context.Context, prompt string, opts Options) (<-chan harmony.Event, error)
	Cancel()
	Stats() harmony.Metrics
}
