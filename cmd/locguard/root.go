// ABOUTME: Root Cobra command and global state
// ABOUTME: Loads config, builds the logger and opens the settings store

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/harper/locguard/internal/config"
	"github.com/harper/locguard/internal/storage"
)

var (
	cfg    *config.Config
	store  storage.Store
	logger = log.New(io.Discard)
)

var rootCmd = &cobra.Command{
	Use:   "locguard",
	Short: "Location privacy for web pages",
	Long: `
██╗      ██████╗  ██████╗ ██████╗ ██╗   ██╗ █████╗ ██████╗ ██████╗
██║     ██╔═══██╗██╔════╝██╔════╝ ██║   ██║██╔══██╗██╔══██╗██╔══██╗
██║     ██║   ██║██║     ██║  ███╗██║   ██║███████║██████╔╝██║  ██║
██║     ██║   ██║██║     ██║   ██║██║   ██║██╔══██║██╔══██╗██║  ██║
███████╗╚██████╔╝╚██████╗╚██████╔╝╚██████╔╝██║  ██║██║  ██║██████╔╝
╚══════╝ ╚═════╝  ╚═════╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝

   Hands pages a noisy location instead of where you really are

Examples:
  locguard locate https://maps.example.com --lat 41.8781 --lng -87.6298
  locguard level set maps.example.com real
  locguard level default high
  locguard status`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			// Already wired (tests).
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = newLogger(cfg.GetLogLevel())
		if err != nil {
			return err
		}

		store, err = cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open %s storage: %w", cfg.GetBackend(), err)
		}
		logger.Debug("storage opened", "backend", cfg.GetBackend(), "data_dir", cfg.GetDataDir())
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store == nil {
			return nil
		}
		err := store.Close()
		store = nil
		return err
	},
}

func newLogger(level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "locguard",
	})
	l.SetLevel(lvl)
	return l, nil
}
