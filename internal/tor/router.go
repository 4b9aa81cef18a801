package tor

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/imgshare/internal/model"
)

// Route maps a domain to the index of one of proxyCount egress proxies.
//
// The index is the SHA3-256 digest of the lower-cased domain, read as an
// unsigned big-endian integer, modulo proxyCount. It depends only on its
// inputs, so a domain keeps the same proxy (and the same Tor circuit) across
// calls and process restarts as long as the proxy list length is unchanged.
func Route(domain string, proxyCount int) (int, error) {
	if proxyCount <= 0 {
		return 0, ErrNoProxies
	}

	sum := sha3.Sum256([]byte(strings.ToLower(domain)))
	n := new(big.Int).SetBytes(sum[:])
	return int(n.Mod(n, big.NewInt(int64(proxyCount))).Int64()), nil
}

// Router hands out the HTTP client to use for a given host. Anonymized hosts
// are pinned to one configured proxy via Route; every other host uses
// direct egress.
type Router struct {
	direct  *http.Client
	egress  []*Client
	clients []*http.Client
}

// NewRouter builds one HTTP client per proxy entry plus a direct client.
// An empty proxy list is valid as long as no anonymized host is routed.
func NewRouter(proxies []string, timeout time.Duration) (*Router, error) {
	r := &Router{
		direct:  NewDirectClient(timeout).NewHTTPClient(),
		egress:  make([]*Client, 0, len(proxies)),
		clients: make([]*http.Client, 0, len(proxies)),
	}

	for _, p := range proxies {
		c, err := NewClient(p, timeout)
		if err != nil {
			return nil, err
		}
		r.egress = append(r.egress, c)
		r.clients = append(r.clients, c.NewHTTPClient())
	}

	return r, nil
}

// ClientFor returns the HTTP client for host.
//
// It fails with ErrNoProxies when host is anonymized and no proxy is
// configured, and with a resolution error when an onion host is malformed.
func (r *Router) ClientFor(host string) (*http.Client, error) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if !model.IsAnonymizedHost(host) {
		return r.direct, nil
	}

	if err := CheckOnionHost(host); err != nil {
		return nil, fmt.Errorf("%s: %w", host, err)
	}

	idx, err := Route(host, len(r.clients))
	if err != nil {
		return nil, err
	}
	return r.clients[idx], nil
}

// Egress returns the configured proxies in routing order.
func (r *Router) Egress() []*Client {
	return r.egress
}

// CheckProxies checks every configured proxy and returns the status of each,
// in routing order.
func (r *Router) CheckProxies(ctx context.Context) []ProxyStatus {
	statuses := make([]ProxyStatus, len(r.egress))
	for i, c := range r.egress {
		statuses[i] = c.CheckConnection(ctx)
	}
	return statuses
}
