package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/imgshare/internal/analysis"
	"github.com/nao1215/imgshare/internal/config"
	"github.com/nao1215/imgshare/internal/report"
	"github.com/nao1215/imgshare/internal/store"
)

// NewGroupsCmd creates the groups command.
func NewGroupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Group sites by the images they share",
		Long: `Groups clusters the stored sites by identical images.

Every prefix hash is mapped to the set of main domains it was seen on.
Hashes seen on two or more domains are grouped by that domain set, and the
groups are listed with the most shared images first.

Output formats:
  - Text (default): Human-readable listing
  - Markdown (--markdown): Summary table, pie chart and one section per group
  - JSON (--json): Machine-readable report

Examples:
  # Print the groups
  imgshare groups

  # Write a Markdown report
  imgshare groups --markdown -o shared.md`,
		Args: cobra.NoArgs,
		RunE: runGroupsCmd,
	}

	cmd.Flags().BoolP("markdown", "m", false,
		"Output the report in Markdown format")
	cmd.Flags().BoolP("json", "j", false,
		"Output the report in JSON format")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to a file instead of stdout")
	cmd.Flags().Int64("min-bytes", 0,
		"Ignore images known to be smaller than this many bytes")
	addCorpusFlags(cmd)
	cmd.MarkFlagsMutuallyExclusive("markdown", "json")

	return cmd
}

// runGroupsCmd executes the groups command.
func runGroupsCmd(cmd *cobra.Command, _ []string) error {
	logger := setupLogger(cmd)

	cfg, err := loadConfig(cmd, logger)
	if err != nil {
		return err
	}
	cfg.OnlyCompareExistingData = true

	minSize, err := cmd.Flags().GetInt64("min-bytes")
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	return runGroups(ctx, cmd.OutOrStdout(), cfg, minSize, logger)
}

// runGroups analyzes the store and writes the grouping report.
func runGroups(ctx context.Context, stdout io.Writer, cfg *config.Config, minSize int64, logger *slog.Logger) error {
	st := store.New(cfg.Roots(), store.WithLogger(logger))
	analyzer := analysis.NewAnalyzer(st,
		analysis.WithMinSize(minSize),
		analysis.WithLogger(logger),
	)

	groups, err := analyzer.Analyze(ctx)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	out := stdout
	if cfg.ReportFile != "" {
		f, err := report.CreateFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if _, err := newGroupWriter(cfg, out).WriteGroups(groups); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.ReportFile != "" {
		fmt.Fprintf(stdout, "Report written to %s (%d groups)\n", cfg.ReportFile, len(groups))
	}
	return nil
}

// newGroupWriter picks the report format.
func newGroupWriter(cfg *config.Config, out io.Writer) report.GroupWriter {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case cfg.Markdown:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewTextWriter(out)
	}
}
