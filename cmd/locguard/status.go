// ABOUTME: Status command: summarize protection state and cached positions
// ABOUTME: Optionally renders the settings as Markdown

package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/cache"
	"github.com/harper/locguard/internal/level"
	"github.com/harper/locguard/internal/storage"
	"github.com/harper/locguard/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show protection status",
	Long: `Show whether protection is active, the default level, the fixed
position and the age of each cached noisy position.

Examples:
  locguard status
  locguard status --markdown > privacy.md`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Load(commandContext(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if md, _ := cmd.Flags().GetBool("markdown"); md {
			_, _ = out.Write(storage.ExportToMarkdown(st))
			return nil
		}

		catalog, err := level.ValidateSettings(st)
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(out, "Protection:     %s\n", ui.FormatPaused(st.Paused))
		_, _ = fmt.Fprintf(out, "Default level:  %s\n", color.GreenString(st.DefaultLevel))
		_, _ = fmt.Fprintf(out, "Domain levels:  %d\n", len(st.DomainLevel))
		_, _ = fmt.Fprintf(out, "Fixed position: %s at %s\n", ui.FormatCoordinate(st.FixedPos.Latitude, st.FixedPos.Longitude), st.FixedPosLevel)
		if cfg != nil {
			_, _ = fmt.Fprintf(out, "Backend:        %s\n", cfg.GetBackend())
		}

		_, _ = fmt.Fprintln(out)
		_, _ = fmt.Fprintln(out, color.New(color.Bold).Sprint("Cached positions"))
		c := cache.New(st.CachedPos, time.Now)
		shown := 0
		for _, l := range catalog.Levels() {
			age, ok := c.Age(l.Name)
			if !ok {
				continue
			}
			shown++
			state := color.GreenString("fresh")
			if _, hit := c.Get(l); !hit {
				state = color.New(color.Faint).Sprint("expired")
			}
			_, _ = fmt.Fprintf(out, "  %-8s %s (%s, %s)\n", l.Name, state,
				ui.FormatRelativeTime(time.Now().Add(-age)), ui.FormatDuration(l.CacheTTL))
		}
		if shown == 0 {
			_, _ = fmt.Fprintln(out, color.New(color.Faint).Sprint("  (none)"))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("markdown", false, "render settings as Markdown")

	rootCmd.AddCommand(statusCmd)
}
