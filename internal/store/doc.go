// Package store persists fingerprints as flat JSON record files and keeps
// the in-memory Store that the matcher reads.
//
// # Record files
//
// Each target gets one file at
//
//	<root>/<main label>/<first 10 hex digits of sha256(target)>.json
//
// holding a JSON array of fingerprints (a single object is accepted on
// read). Readers accept the historical field names (url, image_size,
// sha256_first_10240_bytes, random_128_bytes_sample_start, exif, timestamp)
// next to the current ones, so archives from older runs load unchanged.
//
// # Store
//
// A Store merges the live root and any number of read-only archive roots.
// The first LoadOrGet call scans every root; later calls reuse the mapping.
// Entries are append-only: a key that is already present is never
// replaced. LoadOrGet returns a shallow copy so callers can iterate without
// the lock while other goroutines insert.
package store
