package tor

import (
	"errors"
	"fmt"

	"github.com/nao1215/imgshare/internal/model"
)

// Proxy configuration and connectivity errors.
// Configuration errors wrap model.ErrConfiguration so the CLI can stop
// before any fetching begins.
var (
	// ErrNoProxies is returned when an anonymized domain must be routed but
	// no egress proxy is configured.
	ErrNoProxies = fmt.Errorf("%w: no egress proxy configured for anonymized routing", model.ErrConfiguration)

	// ErrInvalidProxyAddress is returned when a proxy entry cannot be parsed.
	// Accepted forms are "host:port" (SOCKS5) or a socks5/socks5h/http/https URL.
	ErrInvalidProxyAddress = fmt.Errorf("%w: invalid proxy address", model.ErrConfiguration)

	// ErrRedirectLeavesNetwork is returned when a redirect moves a request
	// between an anonymized host and a clearnet host. The router picked the
	// egress for the first host only.
	ErrRedirectLeavesNetwork = fmt.Errorf("%w: redirect crosses anonymized network boundary", model.ErrNetwork)

	// ErrProxyNotSOCKS5 is returned when the configured proxy address responds
	// but does not speak SOCKS5.
	ErrProxyNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrProxyCannotConnect is returned when no TCP connection can be made to
	// the proxy address.
	ErrProxyCannotConnect = errors.New("cannot connect to proxy")

	// ErrProxyTimeout is returned when the connection to the proxy times out.
	ErrProxyTimeout = errors.New("timeout connecting to proxy")
)

// ProxyStatus represents the result of checking an egress proxy.
type ProxyStatus int

const (
	// ProxyStatusOK indicates the proxy accepted a connection request.
	ProxyStatusOK ProxyStatus = iota

	// ProxyStatusWrongType indicates the proxy answered but not as SOCKS5.
	ProxyStatusWrongType

	// ProxyStatusCannotConnect indicates no connection could be established.
	ProxyStatusCannotConnect

	// ProxyStatusTimeout indicates the connection attempt timed out.
	ProxyStatusTimeout
)

// String returns a human-readable description of the proxy status.
func (s ProxyStatus) String() string {
	switch s {
	case ProxyStatusOK:
		return "OK"
	case ProxyStatusWrongType:
		return "wrong type (not SOCKS5)"
	case ProxyStatusCannotConnect:
		return "cannot connect"
	case ProxyStatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the error for this status, or nil if OK.
func (s ProxyStatus) Error() error {
	switch s {
	case ProxyStatusOK:
		return nil
	case ProxyStatusWrongType:
		return ErrProxyNotSOCKS5
	case ProxyStatusCannotConnect:
		return ErrProxyCannotConnect
	case ProxyStatusTimeout:
		return ErrProxyTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
