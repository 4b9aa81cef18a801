package match

import (
	"bytes"
	"strings"

	"github.com/nao1215/imgshare/internal/model"
	"github.com/nao1215/imgshare/internal/store"
)

// PaddingRatio is the share of '0' hex digits at or above which a boundary
// sample is treated as padding.
const PaddingRatio = 0.90

// Match compares fp against every fingerprint in snap and returns one event
// per rule that fired, in record key order. window is the prefix retrieved
// for fp; it may be nil, which disables the boundary-sample rule.
//
// A fingerprint with no hash, sample or etag never matches.
func Match(fp *model.Fingerprint, window []byte, snap store.Snapshot) []model.MatchEvent {
	if fp == nil || !fp.Discriminative() {
		return nil
	}

	var events []model.MatchEvent
	for _, key := range snap.Keys() {
		for _, existing := range snap[key] {
			if existing == nil || existing.SourceID == fp.SourceID {
				continue
			}
			for _, reason := range rules(fp, window, existing) {
				events = append(events, model.MatchEvent{
					SourceID:        fp.SourceID,
					MatchedSourceID: existing.SourceID,
					RecordKey:       key,
					Reason:          reason,
				})
			}
		}
	}
	return events
}

// rules returns the reasons for which existing duplicates fp.
func rules(fp *model.Fingerprint, window []byte, existing *model.Fingerprint) []model.MatchReason {
	var reasons []model.MatchReason
	if fp.HasHash() && existing.HasHash() && fp.ContentHashPrefix == existing.ContentHashPrefix {
		reasons = append(reasons, model.ReasonContentHash)
	}
	if fp.HasETag() && existing.HasETag() && fp.ETag == existing.ETag {
		reasons = append(reasons, model.ReasonETag)
	}
	if contains(window, existing) {
		reasons = append(reasons, model.ReasonBoundarySample)
	}
	return reasons
}

// contains reports whether the boundary sample of existing occurs in window.
func contains(window []byte, existing *model.Fingerprint) bool {
	if len(window) == 0 || !existing.HasSample() || IsPadding(existing.BoundarySample) {
		return false
	}
	sample := existing.SampleBytes()
	return len(sample) > 0 && bytes.Contains(window, sample)
}

// IsPadding reports whether a hex sample is at least PaddingRatio zeros.
// An empty sample counts as padding.
func IsPadding(sample string) bool {
	if sample == "" {
		return true
	}
	zeros := strings.Count(sample, "0")
	return float64(zeros)/float64(len(sample)) >= PaddingRatio
}
