package repodata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/volans-io/repodata/internal/staging"
	"github.com/volans-io/repodata/internal/transfer"
)

// fetchSubdir downloads, decodes and projects one subdir's repodata document.
func (c *Cache) fetchSubdir(ctx context.Context, channel Channel, subdirURL *url.URL) ([]Record, error) {
	avail := CheckVariantAvailability(ctx, c.client, subdirURL)
	fileURL, encoding := selectVariant(subdirURL, avail)
	c.log().Debug("fetching repodata",
		"url", fileURL,
		"encoding", encoding.String(),
		"zst", avail.HasZst,
		"bz2", avail.HasBz2,
	)

	data, err := c.download(ctx, subdirURL, fileURL, encoding)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := c.parse.run(ctx, func() ([]Record, error) {
		return projectRecords(data, channel, subdirURL)
	})
	if err != nil {
		return nil, err
	}
	c.log().Debug("parsed repodata",
		"url", fileURL,
		"records", len(records),
		"elapsed", time.Since(start),
	)
	return records, nil
}

// download retrieves fileURL and returns the decoded document bytes. When a
// staged copy of the document exists its validators are replayed so an
// unchanged remote can answer 304 and the staged body is reused instead of
// transferred again.
func (c *Cache) download(ctx context.Context, subdirURL, fileURL *url.URL, encoding transfer.Encoding) ([]byte, error) {
	var staged staging.Meta
	conditional := false
	if c.stage != nil {
		if m, ok := c.stage.Meta(subdirURL); ok && m.URL == fileURL.String() {
			staged = m
			conditional = staged.ETag != "" || staged.LastModified != ""
		}
	}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		if conditional {
			if staged.ETag != "" {
				req.Header.Set("If-None-Match", staged.ETag)
			}
			if staged.LastModified != "" {
				req.Header.Set("If-Modified-Since", staged.LastModified)
			}
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: GET %s: %v", ErrTransport, fileURL, err)
		}

		if conditional && resp.StatusCode == http.StatusNotModified {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			body, err := c.stage.ReadBody(subdirURL, staged.Digest)
			if err == nil {
				c.log().Debug("repodata unchanged, reusing staged body", "url", fileURL)
				return body, nil
			}
			// Staged body is gone or does not match its sidecar, retry once
			// without validators.
			c.log().Debug("staged body unusable, refetching", "url", fileURL, "error", err)
			conditional = false
			continue
		}

		data, err := c.readBody(resp, encoding)
		if err != nil {
			return nil, err
		}

		if c.stage != nil {
			meta := staging.Meta{
				URL:          fileURL.String(),
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				FetchedAt:    time.Now().UTC(),
			}
			if err := c.stage.Put(subdirURL, meta, data); err != nil {
				// Staging is opportunistic
				c.log().Debug("staging write failed", "url", subdirURL, "error", err)
			}
		}
		return data, nil
	}
}

// readBody consumes a download response and reverses its transfer encoding.
func (c *Cache) readBody(resp *http.Response, encoding transfer.Encoding) ([]byte, error) {
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s: unexpected status %s", ErrTransport, resp.Request.URL, resp.Status)
	}
	data, err := c.decode.Decode(resp.Body, encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrTransport, resp.Request.URL, err)
	}
	return data, nil
}
