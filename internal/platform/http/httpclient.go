// Package http provides the shared HTTP client for outbound API calls.
package http

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client for external API calls. Every outbound
// call carries a bounded timeout so a slow source fails closed instead of
// stalling a batch run.
//
// Settings:
//   - Proxy honors the environment (HTTP_PROXY etc.)
//   - Dialer.Timeout bounds TCP connect separately from the request timeout
//   - MaxIdleConns / IdleConnTimeout keep reusable connections under load
//
// http.DefaultClient has no timeout; always use this constructor instead.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
