package pipeline

import (
	"log/slog"
	"sync/atomic"
)

// RunSummary counts what a run did.
type RunSummary struct {
	// Targets is the number of targets given to Run.
	Targets int

	// Skipped counts targets dropped at intake because a record exists or
	// they were listed twice.
	Skipped int

	// Scheduled counts targets handed to the outer pool.
	Scheduled int

	// Persisted counts record files written.
	Persisted int

	// Unsupported counts targets that were neither an image nor a page.
	Unsupported int

	// Failed counts targets that could not be resolved or persisted, or
	// whose units all failed.
	Failed int

	// Fingerprints counts fingerprints written.
	Fingerprints int

	// Interrupted counts targets cut short by cancellation. They have no
	// record and are retried by the next run.
	Interrupted int

	// DroppedUnits counts image units that produced nothing usable.
	DroppedUnits int

	// Matches counts match events reported.
	Matches int
}

// LogValue groups the counters for structured logging.
func (s RunSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("targets", s.Targets),
		slog.Int("skipped", s.Skipped),
		slog.Int("scheduled", s.Scheduled),
		slog.Int("persisted", s.Persisted),
		slog.Int("unsupported", s.Unsupported),
		slog.Int("failed", s.Failed),
		slog.Int("interrupted", s.Interrupted),
		slog.Int("fingerprints", s.Fingerprints),
		slog.Int("dropped_units", s.DroppedUnits),
		slog.Int("matches", s.Matches),
	)
}

// counters are the concurrently updated parts of a RunSummary.
type counters struct {
	persisted    atomic.Int64
	unsupported  atomic.Int64
	failed       atomic.Int64
	interrupted  atomic.Int64
	fingerprints atomic.Int64
	dropped      atomic.Int64
	matches      atomic.Int64
}

func (c *counters) fill(s *RunSummary) {
	s.Persisted = int(c.persisted.Load())
	s.Unsupported = int(c.unsupported.Load())
	s.Failed = int(c.failed.Load())
	s.Interrupted = int(c.interrupted.Load())
	s.Fingerprints = int(c.fingerprints.Load())
	s.DroppedUnits = int(c.dropped.Load())
	s.Matches = int(c.matches.Load())
}
