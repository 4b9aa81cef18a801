package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgshare/internal/config"
	"github.com/nao1215/imgshare/internal/log"
)

// addCorpusFlags registers the flags that locate the record folders. Every
// command reading the store takes them.
func addCorpusFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("data", "d", config.DefaultDataFolder,
		"Folder where fingerprint records are written")
	cmd.Flags().StringSlice("archive", nil,
		"Read-only record folders from earlier runs (repeatable)")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config file path from the command or its
// parent, or "" when neither defines it.
func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return ""
		}
	}
	return path
}

// setupLogger creates the masking logger writing to the command's stderr
// and installs it as the default.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	logger := log.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	slog.SetDefault(logger)
	return logger
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// loadConfig builds the configuration of one invocation. Defaults come
// first, then the config file, then every flag the user set explicitly.
func loadConfig(cmd *cobra.Command, logger *slog.Logger) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	cfg.ConfigFilePath = getConfigFlag(cmd)

	path, err := config.Load(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if path != "" {
		logger.Debug("loaded config file", "path", path)
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies explicitly set flags onto cfg. Flags a command does
// not define are never reported as changed.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("min-size") {
		if cfg.MinImageSize, err = flags.GetInt64("min-size"); err != nil {
			return err
		}
	}
	if flags.Changed("threads") {
		if cfg.MaxThreads, err = flags.GetInt("threads"); err != nil {
			return err
		}
	}
	if flags.Changed("per-page") {
		if cfg.MaxImgPerDomain, err = flags.GetInt("per-page"); err != nil {
			return err
		}
	}
	if flags.Changed("proxy") {
		if cfg.Proxies, err = flags.GetStringSlice("proxy"); err != nil {
			return err
		}
	}
	if flags.Changed("data") {
		if cfg.DataFolder, err = flags.GetString("data"); err != nil {
			return err
		}
	}
	if flags.Changed("archive") {
		if cfg.Archive, err = flags.GetStringSlice("archive"); err != nil {
			return err
		}
	}
	if flags.Changed("no-html") {
		noHTML, err := flags.GetBool("no-html")
		if err != nil {
			return err
		}
		cfg.HTMLParsing = !noHTML
	}
	if flags.Changed("list") {
		if cfg.URLFile, err = flags.GetString("list"); err != nil {
			return err
		}
	}
	if flags.Changed("images") {
		if cfg.ImagesFolder, err = flags.GetString("images"); err != nil {
			return err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return err
		}
	}
	if flags.Changed("embedded-tor") {
		if cfg.EmbeddedTor, err = flags.GetBool("embedded-tor"); err != nil {
			return err
		}
	}
	if flags.Changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("compare-only") {
		if cfg.OnlyCompareExistingData, err = flags.GetBool("compare-only"); err != nil {
			return err
		}
	}
	if flags.Changed("markdown") {
		if cfg.Markdown, err = flags.GetBool("markdown"); err != nil {
			return err
		}
	}
	if flags.Changed("json") {
		if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
			return err
		}
	}
	if flags.Changed("output") {
		if cfg.ReportFile, err = flags.GetString("output"); err != nil {
			return err
		}
	}
	return nil
}
