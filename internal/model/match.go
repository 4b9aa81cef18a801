package model

// MatchReason names the rule that produced a MatchEvent.
type MatchReason string

const (
	// ReasonContentHash means both prefix hashes are present and equal.
	ReasonContentHash MatchReason = "content-hash"

	// ReasonETag means both normalized etags are present and equal.
	ReasonETag MatchReason = "etag"

	// ReasonBoundarySample means the existing boundary sample occurs inside
	// the freshly retrieved prefix of the new fingerprint.
	ReasonBoundarySample MatchReason = "boundary-sample"
)

// String returns the reason label.
func (r MatchReason) String() string {
	return string(r)
}

// MatchEvent is one duplicate signal between a new fingerprint and one that
// was already known. A single existing fingerprint may produce several events,
// one per rule that fired.
type MatchEvent struct {
	// SourceID is the origin of the new fingerprint.
	SourceID string `json:"source_id"`

	// MatchedSourceID is the origin of the existing fingerprint.
	MatchedSourceID string `json:"matched_source_id"`

	// RecordKey identifies the record file holding the existing fingerprint.
	RecordKey string `json:"record_key"`

	// Reason is the rule that fired.
	Reason MatchReason `json:"reason"`
}

// DomainGroup is one result of the offline grouping analysis: an exact set of
// two or more domains and the content hashes that all of them produced.
type DomainGroup struct {
	// Domains is sorted lexicographically.
	Domains []string `json:"domains"`

	// Hashes is sorted lexicographically.
	Hashes []string `json:"hashes"`
}
