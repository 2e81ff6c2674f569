package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nate11235813/SonifiedLLMKit/internal/catalog"
	"github.com/nate11235813/SonifiedLLMKit/internal/download"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the local model cache",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List models in the manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, err := catalog.Load(cfg.Models.Manifest)
		if err != nil {
			return err
		}

		mgr := download.NewManager(cfg.Models.Dir)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tMIN RAM\tCONTEXT\tQUANT\tCACHED")
		for _, m := range manifest.Models {
			cached := "no"
			if _, err := os.Stat(mgr.Path(m)); err == nil {
				cached = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%d MB\t%d\t%s\t%s\n",
				m.Name, formatBytes(m.SizeBytes), m.MinRAMMB, m.ContextLength, m.Quantization, cached)
		}
		return w.Flush()
	},
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull <name>",
	Short: "Download a model into the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, err := catalog.Load(cfg.Models.Manifest)
		if err != nil {
			return err
		}
		model, err := manifest.Find(args[0])
		if err != nil {
			return err
		}

		ctx, stop := notifyContext(cmd.Context())
		defer stop()

		mgr := download.NewManager(cfg.Models.Dir)
		path, err := mgr.Fetch(ctx, model)
		if err != nil {
			return err
		}
		fmt.Println(path)

		if cfg.Models.CacheLimitBytes > 0 {
			if _, err := download.EvictUntilUnder(cfg.Models.Dir, cfg.Models.CacheLimitBytes); err != nil {
				return err
			}
		}
		return nil
	},
}

var modelsSelectCmd = &cobra.Command{
	Use:   "select",
	Short: "Pick the best model for the configured RAM budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, err := catalog.Load(cfg.Models.Manifest)
		if err != nil {
			return err
		}
		model, err := catalog.Select(manifest.Models, cfg.Models.RAMBudgetMB)
		if err != nil {
			return err
		}
		fmt.Println(model.Name)
		return nil
	},
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsPullCmd)
	modelsCmd.AddCommand(modelsSelectCmd)
}
