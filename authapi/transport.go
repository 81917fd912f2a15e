package authapi

import (
	"net"
	"net/http"
	"time"
)

// Timeouts bound a single call. Connect covers dialing and TLS, Receive the
// wait for response headers, Request the whole exchange.
type Timeouts struct {
	Connect time.Duration `yaml:"connect"`
	Receive time.Duration `yaml:"receive"`
	Request time.Duration `yaml:"request"`
}

// DefaultTimeouts returns conservative mobile-network friendly timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect: 10 * time.Second,
		Receive: 15 * time.Second,
		Request: 30 * time.Second,
	}
}

// NewHTTPClient returns an *http.Client that enforces t. A timeout surfaces
// as a transport error, which the client maps to ErrNetwork.
func NewHTTPClient(t Timeouts) *http.Client {
	dialer := &net.Dialer{Timeout: t.Connect, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   t.Connect,
		ResponseHeaderTimeout: t.Receive,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: t.Request}
}
