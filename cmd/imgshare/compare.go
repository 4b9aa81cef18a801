package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgshare/internal/config"
	"github.com/nao1215/imgshare/internal/pipeline"
	"github.com/nao1215/imgshare/internal/report"
	"github.com/nao1215/imgshare/internal/store"
)

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare stored fingerprints with each other",
		Long: `Compare matches every stored fingerprint against all other stored records.

No network request is made. Records from the data folder and every archive
folder are loaded, and each fingerprint with a prefix hash, ETag or boundary
sample found in another site's record is reported.

Examples:
  # Compare the default data folder
  imgshare compare

  # Include records from an earlier run
  imgshare compare --archive ./archive/2024`,
		Args: cobra.NoArgs,
		RunE: runCompareCmd,
	}

	addCorpusFlags(cmd)

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(cmd)

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}
	cfg.OnlyCompareExistingData = true

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runCompare(ctx, cmd.OutOrStdout(), cfg, logger)
}

// runCompare reports matches among the stored records.
func runCompare(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	st := store.New(cfg.Roots(), store.WithLogger(logger))
	orchestrator := pipeline.New(nil, nil, st, cfg.DataRoot(),
		pipeline.WithLogger(logger),
		pipeline.WithReporter(report.NewMatchWriter(out)),
	)

	matched, err := orchestrator.CompareExisting(ctx)
	if err != nil {
		return fmt.Errorf("compare failed: %w", err)
	}

	fmt.Fprintf(out, "\n%d stored fingerprints match another record (%d records compared)\n", matched, st.Len())
	return nil
}
