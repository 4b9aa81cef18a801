package model

import "errors"

// Error taxonomy shared by all stages of a run.
// Package-specific errors wrap one of these so callers can decide the
// continuation policy with errors.Is without knowing which package failed.
var (
	// ErrNetwork covers timeouts, connection failures and non-success statuses.
	// The affected unit yields an empty or degraded result; the run continues.
	ErrNetwork = errors.New("network error")

	// ErrResolution is returned when no domain or address can be derived
	// from a malformed identifier. The unit is skipped.
	ErrResolution = errors.New("resolution error")

	// ErrExtraction is returned when a property extractor strategy fails.
	// It is never fatal: the extractor chain falls through to the next strategy.
	ErrExtraction = errors.New("extraction error")

	// ErrPersistence is returned when a record file cannot be read or written.
	ErrPersistence = errors.New("persistence error")

	// ErrConfiguration is fatal at startup, before any fetching begins.
	ErrConfiguration = errors.New("configuration error")
)
