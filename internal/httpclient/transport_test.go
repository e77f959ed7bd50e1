package httpclient

import (
	"testing"

	"github.com/rs/dnscache"
)

func TestNewUpstreamTransport_NilResolverLeavesDefaultDialer(t *testing.T) {
	t.Parallel()
	tr := NewUpstreamTransport(nil)
	if tr.DialContext != nil {
		t.Error("expected no custom DialContext when resolver is nil")
	}
}

func TestNewUpstreamTransport_ResolverInstallsDialContext(t *testing.T) {
	t.Parallel()
	tr := NewUpstreamTransport(&dnscache.Resolver{})
	if tr.DialContext == nil {
		t.Error("expected a dnscache-backed DialContext when resolver is set")
	}
	if !tr.ForceAttemptHTTP2 {
		t.Error("expected HTTP/2 to be attempted for the upstream API")
	}
}
