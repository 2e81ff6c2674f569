package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nate11235813/SonifiedLLMKit/internal/config"
	"github.com/nate11235813/SonifiedLLMKit/internal/engine"
	"github.com/nate11235813/SonifiedLLMKit/internal/engine/enginetest"
)

// newBackends wires the engine backends available to this build. Native
// backends (llama.cpp and friends) register here when compiled in; the
// scripted backend replays a YAML script and exists for demos and smoke
// tests.
func newBackends(cfg *config.Config) *engine.Backends {
	backends := engine.NewBackends()
	backends.RegisterFactory("scripted", func() (engine.Engine, error) {
		return loadScriptedEngine(cfg.Engine.Script)
	})
	return backends
}

func loadScriptedEngine(path string) (engine.Engine, error) {
	if path == "" {
		return nil, fmt.Errorf("engine.script is required for the scripted backend")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine script: %w", err)
	}

	var script struct {
		Legs []struct {
			Chunks []string `yaml:"chunks"`
		} `yaml:"legs"`
	}
	if err := yaml.Unmarshal(raw, &script); err != nil {
		return nil, fmt.Errorf("parse engine script: %w", err)
	}
	if len(script.Legs) == 0 {
		return nil, fmt.Errorf("engine script %q has no legs", path)
	}

	legs := make([]enginetest.Leg, 0, len(script.Legs))
	for _, leg := range script.Legs {
		legs = append(legs, enginetest.TextLeg(leg.Chunks...))
	}
	return enginetest.NewScripted(legs...), nil
}
