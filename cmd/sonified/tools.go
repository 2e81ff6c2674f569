package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nate11235813/SonifiedLLMKit/internal/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List registered tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		box, err := tool.NewBuiltinToolbox(cfg.Tools.Enabled, tool.BuiltinOptions{
			FileRoot: cfg.Tools.FileRoot,
		})
		if err != nil {
			return err
		}

		showSchema, _ := cmd.Flags().GetBool("schema")
		for _, d := range box.Descriptors() {
			fmt.Printf("%s\t%s\n", d.Name, d.Description)
			if showSchema {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(d.Schema); err != nil {
					return err
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().Bool("schema", false, "print each tool's argument schema")
}
