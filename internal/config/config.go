package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nate11235813/SonifiedLLMKit/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server Server `koanf:"server"`
	Engine Engine `koanf:"engine"`
	Models Models `koanf:"models"`
	Tools  Tools  `koanf:"tools"`
	Chat   Chat   `koanf:"chat"`
}

type Server struct {
	LogLevel string `koanf:"log_level"`
}

type Engine struct {
	Backend       string  `koanf:"backend"`
	Script        string  `koanf:"script"`
	ContextLength int     `koanf:"context_length"`
	Temperature   float64 `koanf:"temperature"`
	TopP          float64 `koanf:"top_p"`
	MaxTokens     int     `koanf:"max_tokens"`
	Seed          int     `koanf:"seed"`
}

type Models struct {
	Dir             string `koanf:"dir"`
	Manifest        string `koanf:"manifest"`
	CacheLimitBytes int64  `koanf:"cache_limit_bytes"`
	RAMBudgetMB     int    `koanf:"ram_budget_mb"`
}

type Tools struct {
	Enabled  []string `koanf:"enabled"`
	FileRoot string   `koanf:"file_root"`
}

type Chat struct {
	System string `koanf:"system"`
}

const (
	DefaultServerLogLevel      = "info"
	DefaultEngineBackend       = "scripted"
	DefaultEngineContextLength = 4096
	DefaultEngineTemperature   = 0.2
	DefaultEngineTopP          = 0.9
	DefaultEngineMaxTokens     = 512
	DefaultEngineSeed          = 0
	DefaultModelsCacheLimit    = int64(20) * 1024 * 1024 * 1024
	DefaultModelsRAMBudgetMB   = 8192
	DefaultToolsFileRoot       = "."
	DefaultChatSystem          = "You are a helpful on-device assistant. When a tool is needed, emit a single {\"tool\":{\"name\":...,\"arguments\":{...}}} object."

	defaultConfigDirName    = ".sonified"
	defaultConfigFileName   = "config.yaml"
	defaultModelsDirName    = "models"
	defaultManifestFileName = "models.yaml"
	envPrefix               = "SONIFIED_"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	home := os.Getenv("HOME")
	defaults := map[string]interface{}{
		"server.log_level":         DefaultServerLogLevel,
		"engine.backend":           DefaultEngineBackend,
		"engine.context_length":    DefaultEngineContextLength,
		"engine.temperature":       DefaultEngineTemperature,
		"engine.top_p":             DefaultEngineTopP,
		"engine.max_tokens":        DefaultEngineMaxTokens,
		"engine.seed":              DefaultEngineSeed,
		"models.dir":               filepath.Join(home, defaultConfigDirName, defaultModelsDirName),
		"models.manifest":          filepath.Join(home, defaultConfigDirName, defaultManifestFileName),
		"models.cache_limit_bytes": DefaultModelsCacheLimit,
		"models.ram_budget_mb":     DefaultModelsRAMBudgetMB,
		"tools.enabled":            []string{},
		"tools.file_root":          DefaultToolsFileRoot,
		"chat.system":              DefaultChatSystem,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		userHome, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(userHome, defaultConfigDirName, defaultConfigFileName)
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	modelsDir, err := pathutil.Expand(cfg.Models.Dir)
	if err != nil {
		return err
	}
	if modelsDir != "" {
		cfg.Models.Dir = modelsDir
	}

	manifest, err := pathutil.Expand(cfg.Models.Manifest)
	if err != nil {
		return err
	}
	if manifest != "" {
		cfg.Models.Manifest = manifest
	}

	fileRoot, err := pathutil.Expand(cfg.Tools.FileRoot)
	if err != nil {
		return err
	}
	if fileRoot != "" {
		cfg.Tools.FileRoot = fileRoot
	}

	return nil
}
