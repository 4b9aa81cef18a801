package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgshare/internal/config"
	"github.com/nao1215/imgshare/internal/fetch"
	"github.com/nao1215/imgshare/internal/fingerprint"
	"github.com/nao1215/imgshare/internal/pipeline"
	"github.com/nao1215/imgshare/internal/report"
	"github.com/nao1215/imgshare/internal/store"
	"github.com/nao1215/imgshare/internal/tor"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [url|file]...",
		Short: "Fingerprint images and report matches with stored ones",
		Long: `Scan fingerprints every target and reports images already seen elsewhere.

A target is an image URL, an HTML page URL or a local file. For a page, the
images referenced by <img> tags are fingerprinted, up to the per-page limit.
Only the first 10240 bytes of an image are downloaded.

Each fingerprint is compared with the stored records as soon as it is built.
A match is reported when the prefix hash, the ETag or the 128-byte boundary
sample of a stored image is found. One record file per target is written to
the data folder; targets that already have a record are skipped.

Targets are read from the command line. Without arguments, or with --list,
they are read from the URL list file (one URL per line).

.onion and .i2p targets need at least one proxy (--proxy) or an embedded
Tor daemon (--embedded-tor).

Examples:
  # Scan a page and an image
  imgshare scan https://example.com/gallery https://example.com/cat.jpg

  # Scan every URL in urls.txt through two Tor proxies
  imgshare scan --list urls.txt -p 127.0.0.1:9050 -p 127.0.0.1:9150

  # Fingerprint a folder of local images
  imgshare scan --images ./downloads`,
		RunE: runScanCmd,
	}

	cmd.Flags().StringP("list", "l", config.DefaultURLFile,
		"File with one target URL per line")
	cmd.Flags().StringP("images", "i", "",
		"Folder of local image files to fingerprint")
	cmd.Flags().StringSliceP("proxy", "p", nil,
		"Egress proxy for .onion and .i2p sites (repeatable, order matters)")
	cmd.Flags().IntP("threads", "t", config.DefaultMaxThreads,
		"Number of targets processed concurrently")
	cmd.Flags().Int("per-page", config.DefaultMaxImgPerDomain,
		"Maximum number of images taken from one page")
	cmd.Flags().Int64("min-size", config.DefaultMinImageSize,
		"Images smaller than this many bytes get a size-only fingerprint")
	cmd.Flags().Bool("no-html", false,
		"Only fingerprint direct image URLs, never parse pages")
	cmd.Flags().Bool("compare-only", false,
		"Do not fetch anything, only compare the stored records")
	cmd.Flags().Duration("timeout", config.DefaultTimeout,
		"Timeout for every network request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Bool("embedded-tor", false,
		"Start an embedded Tor daemon when no proxy is configured")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Maximum time to wait for the embedded Tor daemon to bootstrap")
	addCorpusFlags(cmd)

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(cmd)

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}

	cfg.Targets, err = collectTargets(cmd, cfg, args, logger)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger.Debug("configuration", "settings", cfg.String())

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	if cfg.OnlyCompareExistingData {
		return runCompare(ctx, cmd.OutOrStdout(), cfg, logger)
	}
	return runScan(ctx, cmd.OutOrStdout(), cfg, logger)
}

// collectTargets gathers the work list: positional arguments, the URL list
// when no argument is given or --list is set, and the images folder.
func collectTargets(cmd *cobra.Command, cfg *config.Config, args []string, logger *slog.Logger) ([]string, error) {
	targets := append([]string(nil), args...)

	if cfg.OnlyCompareExistingData {
		return targets, nil
	}

	if len(args) == 0 || cmd.Flags().Changed("list") {
		urls, err := pipeline.ReadURLList(cfg.URLFile, logger)
		if err != nil {
			return nil, err
		}
		targets = append(targets, urls...)
	}

	if cfg.ImagesFolder != "" {
		files, err := pipeline.ListImageFiles(cfg.ImagesFolder)
		if err != nil {
			return nil, err
		}
		targets = append(targets, files...)
	}

	return targets, nil
}

// runScan wires the fetch stack to the orchestrator and runs one pass.
func runScan(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	if cfg.EmbeddedTor && len(cfg.Proxies) == 0 && cfg.HasAnonymizedTargets() {
		embeddedTor, err := startEmbeddedTor(ctx, out, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := embeddedTor.Stop(); err != nil {
				logger.Warn("failed to stop embedded Tor", "error", err)
			}
		}()
		cfg.Proxies = []string{embeddedTor.ProxyURL()}
	}

	router, err := tor.NewRouter(cfg.Proxies, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if cfg.HasAnonymizedTargets() {
		checkProxies(ctx, router, logger)
	}

	fetcher := fetch.NewFetcher(router,
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithLogger(logger),
	)
	resolver := fetch.NewResolver(fetcher, cfg.MaxImgPerDomain,
		fetch.WithHTMLParsing(cfg.HTMLParsing),
		fetch.WithResolverLogger(logger),
	)
	builder := fingerprint.NewBuilder(fetcher,
		fingerprint.WithMinSize(cfg.MinImageSize),
		fingerprint.WithLogger(logger),
	)
	st := store.New(cfg.Roots(), store.WithLogger(logger))

	orchestrator := pipeline.New(resolver, builder, st, cfg.DataRoot(),
		pipeline.WithLogger(logger),
		pipeline.WithMaxThreads(cfg.MaxThreads),
		pipeline.WithMaxImagesPerPage(cfg.MaxImgPerDomain),
		pipeline.WithReporter(report.NewMatchWriter(out)),
	)

	summary, err := orchestrator.Run(ctx, cfg.Targets)
	printSummary(out, summary)
	return err
}

// checkProxies logs every proxy that does not answer as a SOCKS5 server.
// A dead proxy only fails the domains routed to it, so the run continues.
func checkProxies(ctx context.Context, router *tor.Router, logger *slog.Logger) {
	egress := router.Egress()
	for i, status := range router.CheckProxies(ctx) {
		if status == tor.ProxyStatusOK {
			logger.Debug("proxy reachable", "proxy", egress[i].String())
			continue
		}
		logger.Warn("proxy check failed", "proxy", egress[i].String(), "status", status.String())
	}
}

// printSummary writes the one-line result of a run.
func printSummary(out io.Writer, s pipeline.RunSummary) {
	fmt.Fprintf(out, "\nProcessed %d of %d targets: %d records written, %d skipped, %d unsupported, %d failed, %d matches\n",
		s.Scheduled, s.Targets, s.Persisted, s.Skipped, s.Unsupported, s.Failed, s.Matches)
	if s.Interrupted > 0 {
		fmt.Fprintf(out, "%d targets were interrupted and will be retried by the next run\n", s.Interrupted)
	}
}

// startEmbeddedTor starts an embedded Tor daemon using tornago.
func startEmbeddedTor(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) (*tor.EmbeddedTor, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintf(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	embeddedTor := tor.NewEmbeddedTor(
		tor.WithStartupTimeout(cfg.TorStartupTimeout),
	)
	if err := embeddedTor.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	logger.Info("embedded Tor daemon started", "proxy", embeddedTor.ProxyURL())
	fmt.Fprintf(out, "Embedded Tor daemon started: %s\n\n", embeddedTor.ProxyURL())

	return embeddedTor, nil
}
