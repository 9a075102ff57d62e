// ABOUTME: Locate command: serve the position a page would receive
// ABOUTME: Takes the true fix from flags or the configured source

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/models"
	"github.com/harper/locguard/internal/policy"
	"github.com/harper/locguard/internal/source"
	"github.com/harper/locguard/internal/ui"
)

var locateCmd = &cobra.Command{
	Use:     "locate <url>",
	Aliases: []string{"loc"},
	Short:   "Show the position a page would receive",
	Long: `Resolve the privacy level for a page and serve it a position.

The true fix comes from --lat/--lng, or from the configured source
(see "source" in config.json) when no coordinates are given.

Examples:
  locguard locate https://maps.example.com --lat 41.8781 --lng -87.6298
  locguard locate https://widget.example --frame --top-url https://news.example
  locguard locate https://maps.example.com --json`,
	Args: cobra.ExactArgs(1),
	RunE: runLocate,
}

func init() {
	locateCmd.Flags().Float64("lat", 0, "true latitude")
	locateCmd.Flags().Float64("lng", 0, "true longitude")
	locateCmd.Flags().Float64("accuracy", 0, "accuracy of the true fix in meters (0 = unknown)")
	locateCmd.Flags().Bool("frame", false, "the call comes from an embedded frame")
	locateCmd.Flags().String("top-url", "", "URL of the top-level page")
	locateCmd.Flags().String("tab", "", "tab identifier for call accounting")
	locateCmd.Flags().Duration("timeout", 10*time.Second, "maximum time to wait for the true position")
	locateCmd.Flags().Duration("max-age", 0, "accept a cached true fix up to this age")
	locateCmd.Flags().Bool("json", false, "print the position as JSON")

	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	call, err := callFromFlags(cmd, args[0])
	if err != nil {
		return err
	}

	src, err := locateSource(cmd)
	if err != nil {
		return err
	}

	rt, err := buildService(src, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	maxAge, _ := cmd.Flags().GetDuration("max-age")

	res, err := rt.svc.Serve(commandContext(cmd), call, source.FetchOptions{Timeout: timeout, MaximumAge: maxAge})
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(res.Position, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString(res.Origin), ui.FormatPosition(res.Position, res.Level.Name, string(res.Outcome)))
	return nil
}

// commandContext returns the command's context, or a background context when
// the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func locateSource(cmd *cobra.Command) (source.Source, error) {
	flags := cmd.Flags()
	if !flags.Changed("lat") && !flags.Changed("lng") {
		return configuredSource()
	}
	if !flags.Changed("lat") || !flags.Changed("lng") {
		return nil, fmt.Errorf("--lat and --lng must be given together")
	}

	lat, _ := flags.GetFloat64("lat")
	lng, _ := flags.GetFloat64("lng")
	if err := models.ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	var accuracy *float64
	if acc, _ := flags.GetFloat64("accuracy"); acc > 0 {
		accuracy = models.Float(acc)
	}
	return source.NewStatic(lat, lng, accuracy), nil
}

// callFromFlags builds the call context shared by locate and allowed.
func callFromFlags(cmd *cobra.Command, rawURL string) (policy.CallContext, error) {
	if policy.ExtractDomain(rawURL) == "" {
		return policy.CallContext{}, fmt.Errorf("invalid url %q", rawURL)
	}
	inFrame, _ := cmd.Flags().GetBool("frame")
	topURL, _ := cmd.Flags().GetString("top-url")
	tab, _ := cmd.Flags().GetString("tab")

	if inFrame && topURL == "" {
		return policy.CallContext{}, fmt.Errorf("--frame requires --top-url")
	}
	if !inFrame && topURL == "" {
		topURL = rawURL
	}
	return policy.CallContext{Tab: tab, URL: rawURL, TopURL: topURL, InFrame: inFrame}, nil
}
