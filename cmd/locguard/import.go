// ABOUTME: Import command for restoring settings from a YAML backup
// ABOUTME: Replaces the stored settings with the backup contents

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/storage"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import settings from a YAML backup",
	Long: `Import settings from a backup created with 'locguard backup'.

WARNING: This replaces the current settings, including cached positions.

Examples:
  locguard import locguard.yaml
  locguard import ~/backups/locguard-20241214.yaml --confirm`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		data, err := os.ReadFile(filename) //nolint:gosec // user-supplied backup path
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Replace current settings with '%s'? [y/N] ", filename)
			reader := bufio.NewReader(cmd.InOrStdin())
			response, _ := reader.ReadString('\n')
			response = strings.TrimSpace(strings.ToLower(response))
			if response != "y" && response != "yes" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Canceled.")
				return nil
			}
		}

		if err := storage.ImportFromYAML(commandContext(cmd), store, data); err != nil {
			return fmt.Errorf("failed to import: %w", err)
		}

		color.Green("Import complete")
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("confirm", false, "skip confirmation prompt")

	rootCmd.AddCommand(importCmd)
}
