// Package fetch talks to image origins: metadata-only probes, byte-range
// retrievals and page downloads. Every call picks its HTTP client from a
// ClientSource (the tor.Router), so anonymized hosts always leave through
// the same proxy.
//
// Calls never panic or return bare errors. They return a result value with
// a Status: StatusOK, StatusEmpty (the origin answered but sent nothing
// usable) or StatusFailed (with Err wrapping model.ErrNetwork or the
// routing error). The caller decides whether to continue.
//
// The Resolver classifies a target as a direct image or an HTML page from
// the probed Content-Type and, for pages, collects the candidate image
// references through a crawler.PageParser.
package fetch
