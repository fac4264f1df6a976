package repodata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/volans-io/repodata/cache"
	"github.com/volans-io/repodata/internal/staging"
	"github.com/volans-io/repodata/internal/transfer"
)

const defaultUserAgent = "repodata-go"

// Cache downloads, parses and caches channel repodata, keyed by subdir URL.
//
// Parsed record lists live in memory for a fixed ttl and are populated
// single-flight: concurrent Gets for the same subdir share one download.
// With a cache directory configured, decoded documents are also staged on
// disk so an expired entry can be revalidated with a conditional request
// instead of re-downloaded.
type Cache struct {
	store     *cache.Cache[string, []Record]
	client    *http.Client
	stage     *staging.Store
	parse     *parseGate
	decode    *transfer.Pool
	logger    *slog.Logger
	userAgent string

	parseWorkers     int
	maxDecoderMemory uint64
}

// New creates a cache whose parsed entries expire ttl after their download.
// cacheDir is the disk location for staged documents; an empty string
// disables staging and with it conditional revalidation.
func New(ttl time.Duration, cacheDir string, opts ...Option) (*Cache, error) {
	if ttl <= 0 {
		return nil, errors.New("repodata: ttl must be positive")
	}
	c := &Cache{
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = http.DefaultClient
	}
	c.store = cache.New[string, []Record](ttl)
	c.parse = newParseGate(c.parseWorkers)
	c.decode = transfer.NewPool(c.maxDecoderMemory)
	if cacheDir != "" {
		stage, err := staging.New(cacheDir)
		if err != nil {
			return nil, fmt.Errorf("repodata: staging: %w", err)
		}
		c.stage = stage
	}
	return c, nil
}

// Get returns the records for one channel subdir, downloading and parsing the
// repodata document on a cache miss.
//
// Concurrent Gets for the same subdir share a single download: callers that
// find a fetch in flight wait for its result instead of downloading again.
// A failed fetch leaves no cache entry, so the next caller retries. The
// returned slice is shared across callers and must not be mutated.
func (c *Cache) Get(ctx context.Context, channel Channel, platform Platform) ([]Record, error) {
	subdirURL := channel.PlatformURL(platform)
	key := subdirURL.String()

	records, handle, err := c.store.GetCached(ctx, key)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		c.log().Debug("repodata cache hit", "url", key, "records", len(records))
		return records, nil
	}

	committed := false
	defer func() {
		if !committed {
			handle.Abandon()
		}
	}()

	records, err = c.fetchSubdir(ctx, channel, subdirURL)
	if err != nil {
		return nil, err
	}
	handle.Commit(records)
	committed = true
	return records, nil
}

// GC drops every expired entry from the in-memory cache. Staged documents on
// disk are kept.
func (c *Cache) GC() {
	removed := c.store.GC()
	if removed > 0 {
		c.log().Debug("repodata cache gc", "removed", removed, "remaining", c.store.Len())
	}
}

func (c *Cache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}
