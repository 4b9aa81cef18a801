package match

import (
	"github.com/nao1215/imgshare/internal/model"
	"github.com/nao1215/imgshare/internal/store"
)

// Finding is every event produced for one fingerprint.
type Finding struct {
	Fingerprint *model.Fingerprint
	Events      []model.MatchEvent
}

// CompareAll matches every fingerprint in snap against all others without
// touching the network. A stored fingerprint has no retrieved prefix, so its
// own decoded boundary sample stands in as the window: the boundary-sample
// rule then fires for identical samples only.
//
// Findings are returned in record key order; fingerprints without events are
// left out.
func CompareAll(snap store.Snapshot) []Finding {
	var findings []Finding
	for _, key := range snap.Keys() {
		for _, fp := range snap[key] {
			if fp == nil {
				continue
			}
			events := Match(fp, fp.SampleBytes(), snap)
			if len(events) == 0 {
				continue
			}
			findings = append(findings, Finding{Fingerprint: fp, Events: events})
		}
	}
	return findings
}
