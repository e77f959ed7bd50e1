package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/dnscache"
)

// NewUpstreamTransport builds the *http.Transport used for every real
// request to a.4cdn.org/a.4cdn.org, resolving through a shared
// dnscache.Resolver so a single cached A record serves every Client in
// the process instead of a DNS lookup per request (the upstream is one
// host shared by every subscribed board's worker). Grounded on
// internal/provider.NewTransport's dnscache-backed DialContext.
func NewUpstreamTransport(resolver *dnscache.Resolver) *http.Transport {
	t := &http.Transport{
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	if resolver != nil {
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		}
	}
	return t
}
