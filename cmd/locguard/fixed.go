// ABOUTME: Fixed command: configure the position served at the "fixed" level
// ABOUTME: Optionally sets its noise level and whether the device is queried at all

package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/models"
	"github.com/harper/locguard/internal/ui"
)

var fixedCmd = &cobra.Command{
	Use:   "fixed <lat> <lng>",
	Short: "Set the fixed position",
	Long: `Set the position served to domains at the "fixed" level.

--level picks the noise level applied to it ("none" serves it exactly).
--no-api skips querying the device for domains at the fixed level.

Examples:
  locguard fixed 48.8584 2.2945
  locguard fixed 48.8584 2.2945 --level none
  locguard fixed 48.8584 2.2945 --no-api=false`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lat, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid latitude: %w", err)
		}
		lng, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid longitude: %w", err)
		}
		if err := models.ValidateCoordinates(lat, lng); err != nil {
			return err
		}

		fixedLevel, _ := cmd.Flags().GetString("level")
		var noAPI *bool
		if cmd.Flags().Changed("no-api") {
			v, _ := cmd.Flags().GetBool("no-api")
			noAPI = &v
		}

		rt, err := buildService(nil, nil)
		if err != nil {
			return err
		}
		defer rt.Close()

		if err := rt.svc.SetFixedPosition(commandContext(cmd), models.Coordinate{Latitude: lat, Longitude: lng}, fixedLevel, noAPI); err != nil {
			return err
		}
		color.Green("Fixed position set to %s", ui.FormatCoordinate(lat, lng))
		return nil
	},
}

func init() {
	fixedCmd.Flags().String("level", "", "noise level for the fixed position (none, low, medium, high, ...)")
	fixedCmd.Flags().Bool("no-api", true, "do not query the device for fixed-level domains")

	rootCmd.AddCommand(fixedCmd)
}
