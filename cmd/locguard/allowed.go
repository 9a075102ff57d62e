// ABOUTME: Allowed command: may a page see the real location
// ABOUTME: Mirrors the check run before every continuous position watch

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var allowedCmd = &cobra.Command{
	Use:   "allowed <url>",
	Short: "Check whether a page may watch the real location",
	Long: `Report whether a continuous position watch from a page may use the
real location. Only top-level pages at the "real" level, or any top-level
page while protection is paused, are allowed.

Follow-up checks (without --first) are counted against the tab.

Examples:
  locguard allowed https://maps.example.com --first
  locguard allowed https://widget.example --frame --top-url https://maps.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		call, err := callFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		first, _ := cmd.Flags().GetBool("first")

		rt, err := buildService(nil, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		allowed, err := rt.svc.WatchAllowed(commandContext(cmd), call, first)
		if err != nil {
			return err
		}
		if allowed {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), color.RedString("allowed: real location"))
		} else {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("denied: noisy location"))
		}
		return nil
	},
}

func init() {
	allowedCmd.Flags().Bool("frame", false, "the call comes from an embedded frame")
	allowedCmd.Flags().String("top-url", "", "URL of the top-level page")
	allowedCmd.Flags().String("tab", "", "tab identifier for call accounting")
	allowedCmd.Flags().Bool("first", false, "initial check when the watch is registered (not counted)")

	rootCmd.AddCommand(allowedCmd)
}
