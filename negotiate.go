package repodata

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/volans-io/repodata/internal/transfer"
)

// repodataFilename is the canonical index document name inside a subdir.
const repodataFilename = "repodata.json"

// VariantAvailability reports which compressed repodata variants a channel
// subdir offers.
type VariantAvailability struct {
	HasZst bool
	HasBz2 bool
}

// CheckVariantAvailability probes a subdir for compressed repodata variants
// with concurrent HEAD requests. A variant whose probe fails for any reason
// counts as not offered; probes never fail the surrounding fetch. A nil
// client falls back to http.DefaultClient.
func CheckVariantAvailability(ctx context.Context, client *http.Client, subdirURL *url.URL) VariantAvailability {
	if client == nil {
		client = http.DefaultClient
	}

	var avail VariantAvailability
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		avail.HasZst = headProbe(ctx, client, variantURL(subdirURL, transfer.EncodingZst))
		return nil
	})
	g.Go(func() error {
		avail.HasBz2 = headProbe(ctx, client, variantURL(subdirURL, transfer.EncodingBz2))
		return nil
	})
	_ = g.Wait() //nolint:errcheck // probe goroutines never return errors
	return avail
}

// selectVariant picks the preferred offered variant: zstandard over bzip2
// over the uncompressed document.
func selectVariant(subdirURL *url.URL, avail VariantAvailability) (*url.URL, transfer.Encoding) {
	switch {
	case avail.HasZst:
		return variantURL(subdirURL, transfer.EncodingZst), transfer.EncodingZst
	case avail.HasBz2:
		return variantURL(subdirURL, transfer.EncodingBz2), transfer.EncodingBz2
	default:
		return variantURL(subdirURL, transfer.EncodingNone), transfer.EncodingNone
	}
}

func variantURL(subdirURL *url.URL, enc transfer.Encoding) *url.URL {
	return subdirURL.JoinPath(repodataFilename + enc.Suffix())
}

// headProbe reports whether u answers a HEAD request with a success status.
func headProbe(ctx context.Context, client *http.Client, u *url.URL) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
