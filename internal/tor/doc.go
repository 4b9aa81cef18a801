// Package tor provides egress routing for imgshare.
//
// Every configured proxy becomes a Client with its own http.Client. The
// Router picks the client for a host: anonymized hosts (.onion, .i2p) are
// pinned to one proxy by hashing the domain (circuit affinity), every other
// host uses direct egress.
//
// SOCKS5 connectivity comes from golang.org/x/net/proxy. When no external
// proxy is available, EmbeddedTor starts a private Tor daemon through
// tornago and exposes its SOCKS port as a proxy entry.
//
// Create one Router per run and pass it to the fetcher; the package keeps no
// global state.
package tor
