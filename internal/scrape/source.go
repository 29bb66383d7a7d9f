package scrape

import (
	"context"
	"crypto/tls"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// RawRecord is one heterogeneous item as delivered by an external source.
// Field names and value types vary per source; the normalizer resolves them.
type RawRecord map[string]interface{}

// DataSource fetches a raw payload from one external data source. A fetch is
// a single attempt; retry policy lives in the Fetcher.
type DataSource interface {
	Name() string
	Fetch(ctx context.Context) ([]RawRecord, error)
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
}

// setBrowserHeaders applies a rotating browser header set to avoid blocking.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
}

// newHTTPClient builds a client scoped to one source. TLS verification is only
// disabled on explicit opt-in: the official NEPSE endpoints have a history of
// broken certificate chains.
func newHTTPClient(timeout time.Duration, insecureSkipVerify bool, logger *zap.Logger) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if insecureSkipVerify {
		logger.Warn("TLS certificate verification DISABLED for scrape client; traffic can be intercepted")
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}

// classifyRequestError maps transport-level failures onto the fetch taxonomy.
func classifyRequestError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return ErrTimeout
		}
		return ErrConnection
	}
	return ErrConnection
}
