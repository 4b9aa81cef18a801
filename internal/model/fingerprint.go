package model

import (
	"encoding/hex"
	"strings"
	"time"
)

const (
	// PrefixSize is the number of leading bytes retrieved and hashed per image.
	PrefixSize = 10240

	// SampleSize is the length in bytes of the boundary sample taken from the
	// end of the retrieved prefix window.
	SampleSize = 128
)

// Fingerprint is the compact descriptor of one partially retrieved image.
// A Fingerprint is immutable once built; the store never rewrites it.
type Fingerprint struct {
	// SourceID is the absolute URL or local file path of the image.
	// It uniquely identifies the origin and is used for self-match exclusion.
	SourceID string `json:"source_id"`

	// ByteSize is the total content length, or 0 when unknown.
	ByteSize int64 `json:"byte_size"`

	// ContentHashPrefix is the hex SHA-256 digest of the first PrefixSize bytes.
	// Empty when the image is below the size floor or the window was not retrieved.
	ContentHashPrefix string `json:"content_hash_prefix,omitempty"`

	// BoundarySample is the hex encoding of the last SampleSize bytes of the
	// retrieved window. Empty when the window is shorter than SampleSize.
	BoundarySample string `json:"boundary_sample,omitempty"`

	// ETag is the normalized cache validator supplied by the origin.
	ETag string `json:"etag,omitempty"`

	// CapturedAt is when the fingerprint was built.
	CapturedAt time.Time `json:"captured_at"`

	// Properties is the map produced by the metadata extractor chain.
	Properties map[string]string `json:"properties,omitempty"`
}

// HasHash reports whether the fingerprint carries a content hash.
func (f *Fingerprint) HasHash() bool {
	return f.ContentHashPrefix != ""
}

// HasSample reports whether the fingerprint carries a boundary sample.
func (f *Fingerprint) HasSample() bool {
	return f.BoundarySample != ""
}

// HasETag reports whether the fingerprint carries a non-empty etag.
func (f *Fingerprint) HasETag() bool {
	return f.ETag != ""
}

// Discriminative reports whether the fingerprint carries anything that a
// duplicate rule can compare. Size-only records without an etag do not.
func (f *Fingerprint) Discriminative() bool {
	return f.HasHash() || f.HasSample() || f.HasETag()
}

// SampleBytes decodes the boundary sample. It returns nil when the sample is
// absent or is not valid hex.
func (f *Fingerprint) SampleBytes() []byte {
	if !f.HasSample() {
		return nil
	}
	b, err := hex.DecodeString(f.BoundarySample)
	if err != nil {
		return nil
	}
	return b
}

// NormalizeETag strips the weak-validator prefix and surrounding quotes from
// a raw ETag header value.
//
//	W/"abc" -> abc
//	"abc"   -> abc
func NormalizeETag(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) >= 2 && (v[:2] == "W/" || v[:2] == "w/") {
		v = v[2:]
	}
	return strings.Trim(v, `"`)
}
