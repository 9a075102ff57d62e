// ABOUTME: Pause and resume commands
// ABOUTME: Toggle the global switch that lets top-level pages see the real location

package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause protection",
	Long: `Pause protection. While paused, top-level pages receive the real
location. Embedded frames are still served noisy positions.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(cmd, true)
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume protection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return setPaused(cmd, false)
	},
}

func setPaused(cmd *cobra.Command, paused bool) error {
	rt, err := buildService(nil, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.svc.SetPaused(commandContext(cmd), paused); err != nil {
		return err
	}
	if paused {
		color.Yellow("Protection paused")
	} else {
		color.Green("Protection resumed")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}
