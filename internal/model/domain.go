package model

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// anonymizedSuffixes lists the reserved top-level suffixes whose hosts are
// only reachable through an egress proxy.
var anonymizedSuffixes = []string{".onion", ".i2p"}

// IsRemote reports whether the identifier is an http(s) address rather than
// a local file path.
func IsRemote(sourceID string) bool {
	return strings.HasPrefix(sourceID, "http")
}

// HostOf returns the lower-cased host name of a remote identifier.
func HostOf(sourceID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(sourceID))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrResolution, sourceID, err)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrResolution, sourceID)
	}
	return host, nil
}

// IsAnonymizedHost reports whether the host requires anonymized routing.
func IsAnonymizedHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	for _, suffix := range anonymizedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

// MainLabel derives the domain label used both as the record folder name and
// as the domain identity in the grouping analysis.
//
// For remote identifiers it is the registrable label of the host:
//
//	http://img.example.org/a.jpg -> example
//	http://abcdef.onion/x.png    -> abcdef
//	http://10.0.0.1/x.png        -> 10.0.0.1
//
// For local files it is the name of the parent directory:
//
//	./samples/shop/a.jpg -> shop
func MainLabel(sourceID string) (string, error) {
	if IsRemote(sourceID) {
		host, err := HostOf(sourceID)
		if err != nil {
			return "", err
		}
		return hostLabel(host), nil
	}

	dir := filepath.Dir(filepath.Clean(sourceID))
	base := filepath.Base(dir)
	if dir == "." || base == string(filepath.Separator) || base == "." || base == "" {
		return "", fmt.Errorf("%w: no parent folder in %q", ErrResolution, sourceID)
	}
	return base, nil
}

// hostLabel returns the first label of the host's eTLD+1, falling back to the
// second-to-last label when the public suffix list has no answer.
func hostLabel(host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return strings.SplitN(etld1, ".", 2)[0]
	}
	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return parts[0]
}
