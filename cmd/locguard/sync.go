// ABOUTME: Sync subcommand for the Charm backend
// ABOUTME: Provides status, link, now, repair and wipe commands

package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/charm"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage Charm cloud sync of settings",
	Long: `Sync settings with Charm Cloud using SSH key authentication.
Only used when "backend" is "charm" in config.json.

Commands:
  status  - Show sync status and user info
  link    - Link this device to your Charm account
  now     - Push and pull settings immediately
  repair  - Repair the local settings database
  wipe    - Permanently delete settings (local and cloud)

Examples:
  locguard sync status
  locguard sync link
  locguard sync repair --force`,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		host := charm.DefaultConfig().CharmHost
		if cfg != nil && cfg.CharmHost != "" {
			host = cfg.CharmHost
		}
		fmt.Printf("Charm Host: %s\n", host)
		fmt.Printf("Database:   %s\n", charm.DBName)
		if cfg != nil {
			fmt.Printf("Backend:    %s\n", cfg.GetBackend())
		}

		cc, err := client.NewClientWithDefaults()
		if err != nil {
			color.Yellow("\nStatus: Not connected")
			fmt.Println("Run 'locguard sync link' to connect your account.")
			return nil
		}
		user, err := cc.ID()
		if err != nil {
			color.Yellow("\nStatus: Not linked")
			fmt.Println("Run 'locguard sync link' to connect your account.")
			return nil
		}

		fmt.Printf("\nUser ID: %s\n", user)
		color.Green("Status: Connected")
		return nil
	},
}

var syncLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link this device to your Charm account",
	RunE: func(cmd *cobra.Command, args []string) error {
		linkCmd := exec.Command("charm", "link")
		linkCmd.Stdin = os.Stdin
		linkCmd.Stdout = os.Stdout
		linkCmd.Stderr = os.Stderr

		if err := linkCmd.Run(); err != nil {
			return fmt.Errorf("failed to run 'charm link': %w\nMake sure the charm CLI is installed: go install github.com/charmbracelet/charm@latest", err)
		}

		color.Green("\n✓ Device linked")
		return nil
	},
}

var syncNowCmd = &cobra.Command{
	Use:   "now",
	Short: "Sync settings immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.Sync(); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		color.Green("✓ Settings synced")
		return nil
	},
}

var repairForce bool

var syncRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair the local settings database",
	Long: `Checkpoint the WAL, check integrity and vacuum the local Charm
database. With --force, a failed integrity check falls back to REINDEX and
finally to a reset from the cloud copy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := kv.Repair(charm.DBName, repairForce)
		if err != nil {
			color.Red("✗ Repair failed: %v", err)
			if !repairForce {
				fmt.Println("\nRun with --force to attempt recovery:")
				fmt.Println("  locguard sync repair --force")
			}
			return err
		}

		if result.IntegrityOK {
			color.Green("  ✓ Integrity check passed")
		} else {
			color.Red("  ✗ Integrity check failed")
		}
		if result.RecoveryAttempted {
			color.Yellow("  ⚠ Recovery attempted (REINDEX)")
		}
		if result.ResetFromCloud {
			color.Yellow("  ⚠ Reset from cloud")
		}
		color.Green("✓ Repair completed")
		return nil
	},
}

var syncWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Permanently delete settings (local and cloud)",
	RunE: func(cmd *cobra.Command, args []string) error {
		color.Red("This deletes locguard settings from ALL linked devices and cannot be undone.")
		fmt.Print("\nType 'wipe' to confirm: ")

		reader := bufio.NewReader(os.Stdin)
		confirmation, _ := reader.ReadString('\n')
		if strings.TrimSpace(confirmation) != "wipe" {
			fmt.Println("Aborted.")
			return nil
		}

		result, err := kv.Wipe(charm.DBName)
		if err != nil {
			return fmt.Errorf("failed to wipe: %w", err)
		}
		if result.Error != nil {
			color.Yellow("⚠ Warning: %v", result.Error)
		}
		color.Green("✓ Settings wiped (%d cloud backups, %d local files)", result.CloudBackupsDeleted, result.LocalFilesDeleted)
		return nil
	},
}

func init() {
	syncRepairCmd.Flags().BoolVarP(&repairForce, "force", "f", false, "Force recovery even if integrity check fails")

	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncLinkCmd)
	syncCmd.AddCommand(syncNowCmd)
	syncCmd.AddCommand(syncRepairCmd)
	syncCmd.AddCommand(syncWipeCmd)

	rootCmd.AddCommand(syncCmd)
}
