package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/nate11235813/SonifiedLLMKit/internal/catalog"
	"github.com/nate11235813/SonifiedLLMKit/internal/config"
	"github.com/nate11235813/SonifiedLLMKit/internal/conversation"
	"github.com/nate11235813/SonifiedLLMKit/internal/download"
	"github.com/nate11235813/SonifiedLLMKit/internal/engine"
	"github.com/nate11235813/SonifiedLLMKit/internal/harmony"
	"github.com/nate11235813/SonifiedLLMKit/internal/tool"
	_ "github.com/nate11235813/SonifiedLLMKit/internal/tool/builtin"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat session",
	Long:  `Start an interactive chat session against the configured engine backend.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("chat.system", "", "system prompt override")
	chatCmd.Flags().String("engine.backend", config.DefaultEngineBackend, "engine backend")
	chatCmd.Flags().String("engine.script", "", "script file for the scripted backend")
}

func runChat(cmd *cobra.Command) error {
	box, err := tool.NewBuiltinToolbox(cfg.Tools.Enabled, tool.BuiltinOptions{
		FileRoot: cfg.Tools.FileRoot,
	})
	if err != nil {
		return fmt.Errorf("build toolbox: %w", err)
	}

	backends := newBackends(cfg)
	eng, err := backends.Acquire(cfg.Engine.Backend)
	if err != nil {
		return err
	}
	defer backends.Release(cfg.Engine.Backend)

	// The scripted backend replays a script and needs no model file.
	if cfg.Engine.Backend != "scripted" {
		if err := loadModel(cmd.Context(), eng); err != nil {
			return err
		}
	}

	opts := conversation.Options{
		Generation: engine.Options{
			ContextLength: cfg.Engine.ContextLength,
			Temperature:   cfg.Engine.Temperature,
			TopP:          cfg.Engine.TopP,
			MaxTokens:     cfg.Engine.MaxTokens,
			Seed:          cfg.Engine.Seed,
		},
		Toolbox: box,
	}
	conv := conversation.New(cfg.Chat.System)

	fmt.Printf("Sonified chat (%s backend). Type '/exit' to quit.\n", cfg.Engine.Backend)
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := handleSlashCommand(conv, box, line)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			if quit {
				return nil
			}
			continue
		}

		askOnce(cmd, conv, eng, line, opts)
	}
}

// loadModel picks the best manifest model for the configured RAM budget,
// fetches it into the cache and loads it into the engine.
func loadModel(ctx context.Context, eng engine.Engine) error {
	manifest, err := catalog.Load(cfg.Models.Manifest)
	if err != nil {
		return err
	}
	model, err := catalog.Select(manifest.Models, cfg.Models.RAMBudgetMB)
	if err != nil {
		return err
	}

	path, err := download.NewManager(cfg.Models.Dir).Fetch(ctx, model)
	if err != nil {
		return err
	}
	slog.Info("Loading model", "model", model.Name, "path", path)
	return eng.Load(ctx, path, model.Spec())
}

func askOnce(cmd *cobra.Command, conv *conversation.Conversation, eng engine.Engine, line string, opts conversation.Options) {
	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	t, events := conv.Ask(ctx, eng, line, opts)
	var last *harmony.Metrics

	for ev := range events {
		switch ev.Type {
		case harmony.EventTypeToken:
			fmt.Print(ev.Token)
		case harmony.EventTypeMetrics:
			last = ev.Metrics
		case harmony.EventTypeToolCall:
			fmt.Printf("\n[tool call] %s\n", ev.ToolCall.Name)
		case harmony.EventTypeToolResult:
			fmt.Printf("[tool result] %s\n", ev.ToolResult.Content)
		case harmony.EventTypeError:
			fmt.Fprintf(os.Stderr, "\ngeneration failed: %v\n", ev.Err)
		}
	}

	fmt.Println()
	if last != nil {
		status := "ok"
		if !last.Success {
			status = "failed"
		}
		fmt.Printf("[%s: %.1f tok/s, %d tokens, %d ms]\n",
			status, last.TokensPerSec, last.TotalTokens, last.TotalMillis)
	}
	slog.Debug("Turn finished", "turn_id", t.ID())
}

func handleSlashCommand(conv *conversation.Conversation, box *tool.Toolbox, line string) (bool, error) {
	parts, err := shlex.Split(line)
	if err != nil {
		return false, fmt.Errorf("parse command: %w", err)
	}
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/exit", "/quit":
		return true, nil
	case "/reset":
		system := conv.System()
		if len(parts) > 1 {
			system = strings.Join(parts[1:], " ")
		}
		conv.Reset(system)
		fmt.Println("History cleared.")
		return false, nil
	case "/tools":
		for _, d := range box.Descriptors() {
			fmt.Printf("- %s: %s\n", d.Name, d.Description)
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %q", parts[0])
	}
}
