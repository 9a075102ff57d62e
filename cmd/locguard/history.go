// ABOUTME: History command: list served positions
// ABOUTME: Prints recent calls or exports them as GeoJSON, and prunes old entries

package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/config"
	"github.com/harper/locguard/internal/db"
	"github.com/harper/locguard/internal/geojson"
	"github.com/harper/locguard/internal/models"
	"github.com/harper/locguard/internal/policy"
	"github.com/harper/locguard/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show positions served to pages",
	Long: `Show the positions served to pages, newest first. Only the served
(noisy) coordinates are recorded; true positions are never stored.

Examples:
  locguard history
  locguard history --origin maps.example.com
  locguard history --geojson > served.geojson
  locguard history --geojson --lines
  locguard history --prune 720h`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of entries (0 = all)")
	historyCmd.Flags().String("origin", "", "only show calls from this domain or URL")
	historyCmd.Flags().Duration("since", 0, "only show calls newer than this")
	historyCmd.Flags().Bool("geojson", false, "output as GeoJSON")
	historyCmd.Flags().Bool("lines", false, "with --geojson, one LineString per origin")
	historyCmd.Flags().Duration("prune", 0, "delete calls older than this and exit")

	rootCmd.AddCommand(historyCmd)
}

func historyPath() string {
	if cfg == nil {
		return db.GetDefaultDBPath()
	}
	return cfg.HistoryDBPath()
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg != nil && cfg.GetBackend() == config.BackendMemory {
		return fmt.Errorf("call history is not kept with the memory backend")
	}
	historyDB, err := db.InitDB(historyPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() { _ = historyDB.Close() }()

	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if prune, _ := cmd.Flags().GetDuration("prune"); prune > 0 {
		n, err := db.DeleteEventsBefore(ctx, historyDB, time.Now().Add(-prune))
		if err != nil {
			return err
		}
		color.Green("Pruned %d entries", n)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	origin, _ := cmd.Flags().GetString("origin")
	since, _ := cmd.Flags().GetDuration("since")

	var events []*models.CallEvent
	switch {
	case origin != "":
		events, err = db.ListEventsByOrigin(ctx, historyDB, policy.ExtractDomain(origin))
	case since > 0:
		events, err = db.ListEventsSince(ctx, historyDB, time.Now().Add(-since))
	default:
		events, err = db.ListEvents(ctx, historyDB, limit)
	}
	if err != nil {
		return err
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	if asGeoJSON, _ := cmd.Flags().GetBool("geojson"); asGeoJSON {
		fc := geojson.ToPointsFeatureCollection(events)
		if lines, _ := cmd.Flags().GetBool("lines"); lines {
			fc = geojson.ToLineFeatureCollection(events)
		}
		data, err := fc.ToJSONIndent()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, string(data))
		return nil
	}

	if len(events) == 0 {
		_, _ = fmt.Fprintln(out, color.New(color.Faint).Sprint("No calls recorded."))
		return nil
	}
	for _, ev := range events {
		_, _ = fmt.Fprintln(out, ui.FormatEvent(ev))
	}
	return nil
}
