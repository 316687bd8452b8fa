package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"clipvault/internal/clipboard"
	"clipvault/internal/config"
	"clipvault/internal/server"
	"clipvault/internal/service"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clipboard capture daemon",
		Long: `Starts the capture daemon: polls the system clipboard, stores changes in
the history database, and serves the local HTTP/websocket API that the other
subcommands and external frontends use.

Only one daemon may run per data directory.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	addCommonFlags(cmd)
	f := cmd.Flags()
	f.Int("port", defaultPort, "HTTP API listen port")
	f.Duration("poll-interval", clipboard.DefaultPollInterval, "clipboard poll interval")

	return cmd
}

func runDaemon(v *viper.Viper) error {
	setupLogging(v)

	baseDir := v.GetString("dir")
	cfg, err := config.Load(config.ConfigPath(baseDir))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pid, err := server.NewPIDFile(baseDir)
	if err != nil {
		return err
	}
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer pid.Release()

	store, images, err := openStores(v)
	if err != nil {
		return err
	}
	defer store.Close()

	var (
		reader  clipboard.Reader
		monitor *clipboard.PollingMonitor
	)
	reader, err = clipboard.NewReader()
	if err != nil {
		slog.Warn("clipboard access unavailable, running query-only", "err", err)
		reader = nil
	} else {
		monitor = clipboard.NewMonitor(reader, v.GetDuration("poll-interval"))
	}

	svc := service.New(monitor, reader, store, images, service.Options{
		MaxItems:      cfg.MaxItems,
		CaptureText:   cfg.CaptureText,
		CaptureImages: cfg.CaptureImages,
		CaptureLinks:  cfg.CaptureLinks,
	})

	srv := server.New(svc, server.Config{Port: v.GetInt("port")})

	slog.Info("clipvault starting",
		"version", Version,
		"dir", baseDir,
		"max_items", cfg.MaxItems,
		"port", v.GetInt("port"),
	)

	if monitor != nil {
		if err := svc.Start(); err != nil {
			return fmt.Errorf("starting capture: %w", err)
		}
		defer svc.Stop()
	}

	if err := srv.Start(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	if err := srv.Stop(); err != nil {
		slog.Error("server shutdown failed", "err", err)
	}
	return nil
}
