package match

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/nao1215/imgshare/internal/model"
	"github.com/nao1215/imgshare/internal/store"
)

func TestCompareAll(t *testing.T) {
	t.Parallel()

	sample := hex.EncodeToString(bytes.Repeat([]byte{0x7e}, model.SampleSize))
	snap := store.Snapshot{
		"alpha": {
			{SourceID: "http://alpha.com/1.jpg", ContentHashPrefix: "h1", BoundarySample: sample},
			{SourceID: "http://alpha.com/small.png", ByteSize: 100},
		},
		"beta": {
			{SourceID: "http://beta.com/1.jpg", ContentHashPrefix: "h1", BoundarySample: sample},
		},
		"gamma": {
			{SourceID: "http://gamma.com/1.jpg", ContentHashPrefix: "h9"},
		},
	}

	findings := CompareAll(snap)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d: %+v", len(findings), findings)
	}
	if findings[0].Fingerprint.SourceID != "http://alpha.com/1.jpg" || findings[1].Fingerprint.SourceID != "http://beta.com/1.jpg" {
		t.Errorf("unexpected finding order: %s, %s", findings[0].Fingerprint.SourceID, findings[1].Fingerprint.SourceID)
	}

	got := findings[0].Events
	if len(got) != 2 || got[0].Reason != model.ReasonContentHash || got[1].Reason != model.ReasonBoundarySample {
		t.Errorf("unexpected events %+v", got)
	}
	if got[0].MatchedSourceID != "http://beta.com/1.jpg" || got[0].RecordKey != "beta" {
		t.Errorf("unexpected match target %+v", got[0])
	}
}

func TestCompareAll_Empty(t *testing.T) {
	t.Parallel()

	if findings := CompareAll(store.Snapshot{}); len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
}
