package http

import (
	"net/http"
	"time"

	commonshttp "github.com/flanksource/commons/http"
	"github.com/flanksource/commons/logger"
)

// ClientOption configures the HTTP client
type ClientOption func(*clientConfig)

type clientConfig struct {
	timeout  time.Duration
	insecure bool
}

// WithTimeout sets the request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithInsecureSkipVerify disables TLS certificate verification, for
// self-signed object stores and artifact repositories
func WithInsecureSkipVerify() ClientOption {
	return func(c *clientConfig) {
		c.insecure = true
	}
}

// GetHttpClient returns the client used for version database and artifact
// traffic. Requests and responses are logged at trace levels when tracing is
// on; proxy settings come from the environment via the underlying transport.
func GetHttpClient(opts ...ClientOption) *http.Client {
	cfg := &clientConfig{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	client := commonshttp.NewClient().
		Timeout(cfg.timeout).
		InsecureSkipVerify(cfg.insecure)

	if logger.IsTraceEnabled() {
		client = client.WithHttpLogging(logger.Trace1, logger.Trace2)
	}

	return &http.Client{
		Transport: client,
		Timeout:   cfg.timeout,
	}
}
