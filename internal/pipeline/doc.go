// Package pipeline runs a fingerprinting pass over a list of targets.
//
// The Orchestrator drops targets that already have a record file, then
// processes the rest in an outer pool bounded by MaxThreads. A target that
// resolves to an HTML page fans out into an inner pool bounded by
// MaxImgPerDomain, one unit per image reference. Each unit builds a
// fingerprint, matches it against the current store snapshot and reports
// any duplicates. When all units of a target have returned, the kept
// fingerprints are written to one record file and inserted into the store.
//
// Unit failures are logged and counted, never returned: a run ends when
// every scheduled unit has returned. A target whose units all failed gets no
// record file and is retried by the next run.
package pipeline
