package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clipvault/internal/config"
	"clipvault/internal/logging"
	"clipvault/internal/storage"
	"clipvault/internal/storage/imagestore"
	"clipvault/internal/storage/sqlite"
)

const defaultPort = 8765

// addCommonFlags registers the flags shared by every subcommand.
func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("dir", config.DefaultDir(), "data directory (database, images, config)")
	f.String("log-format", "auto", "log format: auto|text|json")
	f.String("log-level", "info", "log level: debug|info|warn|error")
}

// bindViper wires a command's flags into a viper instance with the standard
// CLIPVAULT_* env overrides.
// Precedence (lowest to highest): defaults, env vars, flags.
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	v.SetEnvPrefix("CLIPVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	logging.Setup(
		logging.ParseFormat(v.GetString("log-format")),
		logging.ParseLevel(v.GetString("log-level")),
	)
}

// openStores opens the SQLite store and image store under the data directory.
func openStores(v *viper.Viper) (storage.Store, *imagestore.ImageStore, error) {
	baseDir := v.GetString("dir")

	store, err := sqlite.New(storage.Config{DBPath: config.DBPath(baseDir)})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	images, err := imagestore.New(config.ImageDir(baseDir))
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("opening image store: %w", err)
	}
	return store, images, nil
}
