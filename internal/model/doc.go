// Package model defines the core data structures shared across imgshare.
//
// This package contains the following main types:
//   - Fingerprint: compact descriptor of a partially retrieved image
//   - MatchEvent: one duplicate signal between two fingerprints
//   - DomainGroup: a set of domains sharing identical content hashes
//
// It also holds the error taxonomy used by every stage of a run and the
// helpers that derive a domain label from a source identifier.
//
// Models live in their own package so that the fetcher, store, matcher and
// report writers can share them without import cycles. Fingerprint is
// serialized to JSON as-is when records are persisted.
package model
