// ABOUTME: Migration command for moving settings between storage backends
// ABOUTME: Copies settings and cached positions with a non-empty target check

package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/config"
	"github.com/harper/locguard/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate settings between storage backends",
	Long: `Copy settings from the currently configured backend to a different one.

Does NOT update the config file; verify the migration, then set "backend"
(and "data_dir" if given) in config.json.

Examples:
  locguard migrate --to badger
  locguard migrate --to bolt --data-dir ~/locguard-bolt
  locguard migrate --to charm`,
	RunE: runMigrate,
}

var (
	migrateTo      string
	migrateDataDir string
	migrateForce   bool
)

func init() {
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "target backend (sqlite, badger, bolt or charm)")
	migrateCmd.Flags().StringVar(&migrateDataDir, "data-dir", "", "target data directory (defaults to current config data_dir)")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "allow writing into a non-empty target location")
	_ = migrateCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	current := cfg
	if current == nil {
		current = &config.Config{}
	}
	sourceBackend := current.GetBackend()

	switch migrateTo {
	case config.BackendSQLite, config.BackendBadger, config.BackendBolt, config.BackendCharm:
	default:
		return fmt.Errorf("invalid target backend %q: must be sqlite, badger, bolt or charm", migrateTo)
	}
	if migrateTo == sourceBackend && migrateDataDir == "" {
		return fmt.Errorf("target backend %q is the same as the current backend", migrateTo)
	}

	target := *current
	target.Backend = migrateTo
	if migrateDataDir != "" {
		target.DataDir = config.ExpandPath(migrateDataDir)
	}

	if migrateTo != config.BackendCharm {
		location := migrateTargetPath(&target)
		nonEmpty, err := storage.IsDirNonEmpty(location)
		if err != nil {
			return fmt.Errorf("check target location: %w", err)
		}
		if nonEmpty && !migrateForce {
			return fmt.Errorf("target %q already holds data; use --force to overwrite", location)
		}
	}

	dst, err := target.OpenStorage()
	if err != nil {
		return fmt.Errorf("open target storage (%s): %w", migrateTo, err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: closing target storage: %v\n", cerr)
		}
	}()

	color.Yellow("Migrating settings:")
	fmt.Printf("  Source:  %s (%s)\n", sourceBackend, current.GetDataDir())
	fmt.Printf("  Target:  %s (%s)\n", migrateTo, target.GetDataDir())
	fmt.Println()

	summary, err := storage.MigrateData(commandContext(cmd), store, dst)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	color.Green("Migration complete!")
	fmt.Printf("  Domain levels:  %d\n", summary.DomainLevels)
	fmt.Printf("  Cache entries:  %d\n", summary.CacheEntries)
	fmt.Println()
	color.Yellow("Note: config.json was NOT updated. To switch to the new backend, edit:")
	fmt.Printf("  %s\n", config.GetConfigPath())
	fmt.Printf("  Set \"backend\": %q", migrateTo)
	if migrateDataDir != "" {
		fmt.Printf(" and \"data_dir\": %q", migrateDataDir)
	}
	fmt.Println()

	return nil
}

// migrateTargetPath is the file or directory the target backend writes to.
func migrateTargetPath(c *config.Config) string {
	switch c.GetBackend() {
	case config.BackendBadger:
		return filepath.Join(c.GetDataDir(), "badger")
	case config.BackendBolt:
		return filepath.Join(c.GetDataDir(), "locguard.bolt")
	default:
		return filepath.Join(c.GetDataDir(), "locguard.db")
	}
}
