// Package enginetest provides a deterministic in-process engine used by
// tests and by the CLI's smoke mode. It plays back scripted token chunks
// while honoring the engine stream contract, including cancellation.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nate11235813/SonifiedLLMKit/internal/engine"
	"github.com/nate11235813/SonifiedLLMKit/internal/harmony"
)

// Leg scripts one Generate call.
type Leg struct {
	Chunks []string

	// Early, when set, is emitted before the first token (the TTFT
	// snapshot). Final, when nil, is synthesized as a successful run.
	Early *harmony.Metrics
	Final *harmony.Metrics

	// Fatal closes the stream after the chunks without final metrics or
	// done, modelling a crashed engine.
	Fatal bool

	// ChunkDelay paces token emission so tests can cancel mid-leg.
	ChunkDelay time.Duration
}

// Scripted implements engine.Engine over a fixed list of legs; the n-th
// Generate call plays the n-th leg.
type Scripted struct {
	mu      sync.Mutex
	legs    []Leg
	next    int
	prompts []string
	stats   harmony.Metrics
	loaded  bool

	cancelled atomic.Bool
}

var _ engine.Engine = (*Scripted)(nil)

func NewScripted(legs ...Leg) *Scripted {
	return &Scripted{legs: legs}
}

// TextLeg scripts a plain successful generation of the given chunks.
func TextLeg(chunks ...string) Leg {
	return Leg{Chunks: chunks}
}

func (s *Scripted) Load(ctx context.Context, modelPath string, spec engine.ModelSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	return nil
}

func (s *Scripted) Unload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	return nil
}

// Prompts returns the prompt passed to each Generate call, in order.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.prompts))
	copy(out, s.prompts)
	return out
}

func (s *Scripted) Cancel() {
	s.cancelled.Store(true)
}

func (s *Scripted) Stats() harmony.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scripted) Generate(ctx context.Context, prompt string, opts engine.Options) (<-chan harmony.Event, error) {
	s.mu.Lock()
	if s.next >= len(s.legs) {
		s.mu.Unlock()
		return nil, fmt.Errorf("scripted engine: no leg for generate call %d", s.next+1)
	}
	leg := s.legs[s.next]
	s.next++
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()

	s.cancelled.Store(false)

	out := make(chan harmony.Event, 16)
	go func() {
		defer close(out)

		if leg.Early != nil {
			out <- harmony.MetricsEvent(*leg.Early)
		}

		for _, chunk := range leg.Chunks {
			if s.interrupted(ctx) {
				s.finishCancelled(out, leg)
				return
			}
			if leg.ChunkDelay > 0 {
				time.Sleep(leg.ChunkDelay)
			}
			out <- harmony.Token(chunk)
		}

		if leg.Fatal {
			return
		}
		if s.interrupted(ctx) {
			s.finishCancelled(out, leg)
			return
		}

		final := s.finalFor(leg, true)
		out <- harmony.MetricsEvent(final)
		out <- harmony.Done()
	}()
	return out, nil
}

func (s *Scripted) interrupted(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

func (s *Scripted) finishCancelled(out chan<- harmony.Event, leg Leg) {
	final := s.finalFor(leg, false)
	out <- harmony.MetricsEvent(final)
	out <- harmony.Done()
}

func (s *Scripted) finalFor(leg Leg, success bool) harmony.Metrics {
	var final harmony.Metrics
	if leg.Final != nil {
		final = *leg.Final
	} else {
		final = harmony.Metrics{
			TTFBMillis:       1,
			TokensPerSec:     float64(len(leg.Chunks)),
			TotalMillis:      1,
			CompletionTokens: len(leg.Chunks),
			TotalTokens:      len(leg.Chunks),
		}
	}
	final.Success = success

	s.mu.Lock()
	s.stats = final
	s.mu.Unlock()
	return final
}
