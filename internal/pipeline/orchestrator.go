package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/nao1215/imgshare/internal/config"
	"github.com/nao1215/imgshare/internal/fetch"
	"github.com/nao1215/imgshare/internal/fingerprint"
	"github.com/nao1215/imgshare/internal/match"
	"github.com/nao1215/imgshare/internal/model"
	"github.com/nao1215/imgshare/internal/store"
)

// TargetResolver classifies a target. *fetch.Resolver implements it.
type TargetResolver interface {
	Resolve(ctx context.Context, target string) (fetch.Resolution, error)
}

// FingerprintBuilder builds one unit. *fingerprint.Builder implements it.
type FingerprintBuilder interface {
	Build(ctx context.Context, ref, base string, header http.Header) (fingerprint.Result, error)
}

// MatchReporter receives the match events of one fingerprint at a time.
// Implementations must be safe for concurrent use and write the events of
// one call as a single block.
type MatchReporter interface {
	ReportMatches(fp *model.Fingerprint, events []model.MatchEvent) error
}

// Orchestrator runs fingerprinting passes. Create it with New.
type Orchestrator struct {
	resolver   TargetResolver
	builder    FingerprintBuilder
	store      *store.Store
	dataRoot   string
	maxThreads int
	maxImages  int
	reporter   MatchReporter
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithMaxThreads bounds the number of targets processed at once.
// Non-positive values are ignored.
func WithMaxThreads(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxThreads = n
		}
	}
}

// WithMaxImagesPerPage bounds the number of image units of one page
// processed at once. Non-positive values are ignored.
func WithMaxImagesPerPage(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxImages = n
		}
	}
}

// WithReporter sets where match events go. Without a reporter events are
// only counted.
func WithReporter(r MatchReporter) Option {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// New creates an Orchestrator writing record files below dataRoot and
// reading the corpus through st.
func New(resolver TargetResolver, builder FingerprintBuilder, st *store.Store, dataRoot string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:   resolver,
		builder:    builder,
		store:      st,
		dataRoot:   dataRoot,
		maxThreads: config.DefaultMaxThreads,
		maxImages:  config.DefaultMaxImgPerDomain,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Pending returns the targets that still need a record, in input order.
// Targets with an existing record file, duplicates and targets from which
// no record path can be derived are left out; skipped counts them.
func (o *Orchestrator) Pending(targets []string) (pending []string, skipped int) {
	seen := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		if _, dup := seen[target]; dup {
			skipped++
			continue
		}
		seen[target] = struct{}{}

		path, err := store.RecordPath(o.dataRoot, target)
		if err != nil {
			o.logger.Warn("skipping target", "target", target, "error", err)
			skipped++
			continue
		}
		if store.Exists(path) {
			o.logger.Debug("record exists", "target", target, "path", path)
			skipped++
			continue
		}
		pending = append(pending, target)
	}
	return pending, skipped
}

// Run processes targets and returns what it did. The store is populated
// before any target is scheduled. The only error is ctx's error when it was
// cancelled during the run; per-target failures are counted in the summary.
// A target interrupted by cancellation writes no record and is scheduled
// again by the next run.
func (o *Orchestrator) Run(ctx context.Context, targets []string) (RunSummary, error) {
	summary := RunSummary{Targets: len(targets)}

	snap, err := o.store.LoadOrGet(ctx, nil)
	if err != nil {
		return summary, err
	}

	pending, skipped := o.Pending(targets)
	summary.Skipped = skipped
	summary.Scheduled = len(pending)

	o.logger.Info("starting run",
		"targets", len(targets),
		"scheduled", len(pending),
		"records", snap.Count(),
		"max_threads", o.maxThreads,
		"max_images", o.maxImages,
	)
	start := time.Now()

	var c counters
	err = processBatch(ctx, pending, o.maxThreads, func(ctx context.Context, _ int, target string) {
		o.processTarget(ctx, target, &c)
	})
	c.fill(&summary)
	if err == nil {
		err = ctx.Err()
	}

	o.logger.Info("run complete", "summary", summary, "elapsed", time.Since(start))
	return summary, err
}

// unit is one image to fingerprint.
type unit struct {
	ref    string
	header http.Header
}

func (o *Orchestrator) processTarget(ctx context.Context, target string, c *counters) {
	res, err := o.resolver.Resolve(ctx, target)
	if err != nil {
		o.logger.Warn("cannot resolve target", "target", target, "error", err)
		c.failed.Add(1)
		return
	}

	var units []unit
	switch res.Kind {
	case fetch.KindImage:
		units = []unit{{ref: target, header: res.Header}}
	case fetch.KindPage:
		units = make([]unit, len(res.References))
		for i, ref := range res.References {
			units[i] = unit{ref: ref}
		}
	default:
		o.logger.Info("unsupported target", "target", target, "content_type", res.Header.Get("Content-Type"))
		c.unsupported.Add(1)
		return
	}

	kept := o.buildUnits(ctx, target, units, c)
	if ctx.Err() != nil {
		o.logger.Warn("target interrupted, no record written", "target", target, "units", len(units), "built", len(kept))
		c.interrupted.Add(1)
		return
	}
	if len(kept) == 0 && len(units) > 0 {
		o.logger.Warn("no fingerprint produced", "target", target, "units", len(units))
		c.failed.Add(1)
		return
	}

	o.persist(ctx, target, kept, c)
}

// buildUnits fingerprints every unit in the inner pool and returns the kept
// fingerprints in unit order.
func (o *Orchestrator) buildUnits(ctx context.Context, base string, units []unit, c *counters) []*model.Fingerprint {
	refs := make([]string, len(units))
	for i, u := range units {
		refs[i] = u.ref
	}

	built := make([]*model.Fingerprint, len(units))
	err := processBatch(ctx, refs, o.maxImages, func(ctx context.Context, i int, ref string) {
		built[i] = o.buildUnit(ctx, ref, base, units[i].header, c)
	})
	if err != nil {
		o.logger.Debug("page interrupted", "target", base, "error", err)
	}

	return slices.DeleteFunc(built, func(fp *model.Fingerprint) bool { return fp == nil })
}

// buildUnit builds, matches and reports one unit. It returns nil when the
// unit produced nothing worth keeping.
func (o *Orchestrator) buildUnit(ctx context.Context, ref, base string, header http.Header, c *counters) *model.Fingerprint {
	res, err := o.builder.Build(ctx, ref, base, header)
	if err != nil {
		o.logger.Warn("skipping image", "ref", ref, "base", base, "error", err)
		c.dropped.Add(1)
		return nil
	}

	fp := res.Fingerprint
	if res.Err != nil && !fp.Discriminative() {
		o.logger.Warn("image unavailable", "url", fp.SourceID, "error", res.Err)
		c.dropped.Add(1)
		return nil
	}
	if res.Err != nil {
		o.logger.Debug("keeping partial fingerprint", "url", fp.SourceID, "error", res.Err)
	}

	snap, err := o.store.LoadOrGet(ctx, nil)
	if err != nil {
		return fp
	}
	events := match.Match(fp, res.Window, snap)
	if len(events) == 0 {
		return fp
	}
	c.matches.Add(int64(len(events)))
	if o.reporter != nil {
		if err := o.reporter.ReportMatches(fp, events); err != nil {
			o.logger.Warn("cannot report matches", "url", fp.SourceID, "error", err)
		}
	}
	return fp
}

// persist writes the record of target and inserts it into the store. A
// failed write drops the record; the target is retried by the next run.
func (o *Orchestrator) persist(ctx context.Context, target string, fps []*model.Fingerprint, c *counters) {
	path, err := store.RecordPath(o.dataRoot, target)
	if err != nil {
		o.logger.Warn("cannot derive record path", "target", target, "error", err)
		c.failed.Add(1)
		return
	}

	if err := store.WriteRecordFile(path, fps); err != nil {
		o.logger.Error("cannot write record", "target", target, "path", path, "error", err)
		c.failed.Add(1)
		return
	}
	c.persisted.Add(1)
	c.fingerprints.Add(int64(len(fps)))

	if _, err := o.store.LoadOrGet(ctx, &store.Entry{Key: path, Fingerprints: fps}); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("cannot add record to store", "path", path, "error", err)
	}
}

// CompareExisting matches every stored fingerprint against all others
// without any network call and reports the findings. It returns the number
// of fingerprints with at least one match.
func (o *Orchestrator) CompareExisting(ctx context.Context) (int, error) {
	snap, err := o.store.LoadOrGet(ctx, nil)
	if err != nil {
		return 0, err
	}

	o.logger.Info("comparing stored fingerprints", "records", len(snap), "fingerprints", snap.Count())

	findings := match.CompareAll(snap)
	for _, f := range findings {
		if o.reporter == nil {
			continue
		}
		if err := o.reporter.ReportMatches(f.Fingerprint, f.Events); err != nil {
			return 0, err
		}
	}
	return len(findings), nil
}
