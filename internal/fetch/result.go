package fetch

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/nao1215/imgshare/internal/model"
)

// Status is the outcome class of a fetch call.
type Status int

const (
	// StatusOK means the call produced a usable result.
	StatusOK Status = iota

	// StatusEmpty means the origin answered successfully but with nothing
	// usable, such as an empty range body.
	StatusEmpty

	// StatusFailed means the call failed; Err says why.
	StatusFailed
)

// String returns the lower-case status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ProbeResult is the outcome of a metadata-only request.
type ProbeResult struct {
	Status     Status
	StatusCode int

	// Header holds the response headers. It is empty, never nil, on failure.
	Header http.Header

	// Length is the Content-Length reported by the origin, or 0 when unknown.
	Length int64

	Err error
}

// OK reports whether the probe succeeded.
func (p ProbeResult) OK() bool {
	return p.Status == StatusOK
}

// ContentType returns the lower-cased media type without parameters.
func (p ProbeResult) ContentType() string {
	ct, _, _ := strings.Cut(p.Header.Get("Content-Type"), ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

// ETag returns the normalized entity tag, or "".
func (p ProbeResult) ETag() string {
	return model.NormalizeETag(p.Header.Get("ETag"))
}

// ContentLength returns the size from Length or, failing that, from the
// Content-Length header. Unknown sizes are 0.
func (p ProbeResult) ContentLength() int64 {
	if p.Length > 0 {
		return p.Length
	}
	n, err := strconv.ParseInt(strings.TrimSpace(p.Header.Get("Content-Length")), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// RangeResult is the outcome of a byte-range or page retrieval.
type RangeResult struct {
	Status     Status
	StatusCode int
	Header     http.Header

	// Body holds at most the requested number of bytes.
	Body []byte

	Err error
}

// OK reports whether the retrieval produced bytes.
func (r RangeResult) OK() bool {
	return r.Status == StatusOK
}

func failedProbe(err error) ProbeResult {
	return ProbeResult{Status: StatusFailed, Header: http.Header{}, Err: err}
}

func failedRange(err error) RangeResult {
	return RangeResult{Status: StatusFailed, Header: http.Header{}, Err: err}
}
