package repodata

import (
	"log/slog"
	"net/http"
)

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient sets the HTTP client used for probes and downloads
// (default: http.DefaultClient).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		c.client = client
	}
}

// WithLogger sets the logger for fetch and cache diagnostics. Without it,
// logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithParseConcurrency bounds how many downloaded documents may be parsed at
// once. Values below 1 mean GOMAXPROCS.
func WithParseConcurrency(n int) Option {
	return func(c *Cache) {
		c.parseWorkers = n
	}
}

// WithDecoderMaxMemory caps the memory a zstandard decoder may use for one
// document. Zero means no limit.
func WithDecoderMaxMemory(limit uint64) Option {
	return func(c *Cache) {
		c.maxDecoderMemory = limit
	}
}

// WithUserAgent sets the User-Agent header sent on download requests. An
// empty string leaves the header to the HTTP client.
func WithUserAgent(ua string) Option {
	return func(c *Cache) {
		c.userAgent = ua
	}
}
