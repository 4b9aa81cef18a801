package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nao1215/imgshare/internal/model"
)

// MatchWriter prints match events as they are found. Each call writes one
// block, a header line followed by one line per event, under a lock, so
// blocks of concurrent callers never interleave.
type MatchWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewMatchWriter creates a MatchWriter that outputs to out.
func NewMatchWriter(out io.Writer) *MatchWriter {
	return &MatchWriter{out: out}
}

// ReportMatches writes the events found for fp. Nothing is written when
// events is empty.
func (w *MatchWriter) ReportMatches(fp *model.Fingerprint, events []model.MatchEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found match for: %s\n", fp.SourceID)
	for _, ev := range events {
		fmt.Fprintf(&sb, "  %s: %s\n", describe(ev.Reason), ev.MatchedSourceID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.out, sb.String())
	return err
}

// describe returns the line prefix for a match reason.
func describe(r model.MatchReason) string {
	switch r {
	case model.ReasonContentHash:
		return "Duplicate image detected based on start hash"
	case model.ReasonETag:
		return "Duplicate image detected based on ETag"
	case model.ReasonBoundarySample:
		return "128-byte sample matches"
	default:
		return string(r)
	}
}
