package repodata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/semaphore"
)

// maxRepodataVersion is the newest repodata_version this package understands.
const maxRepodataVersion = 2

// projectRecords decodes a repodata document and projects every package entry,
// tarball and conda alike, into a Record tagged with its channel. Records are
// sorted by filename.
func projectRecords(data []byte, channel Channel, subdirURL *url.URL) ([]Record, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.Version < 0 || doc.Version > maxRepodataVersion {
		return nil, fmt.Errorf("%w: unsupported repodata_version %d", ErrParse, doc.Version)
	}
	base, err := resolveBaseURL(subdirURL, doc.Info.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base_url %q: %v", ErrParse, doc.Info.BaseURL, err)
	}

	records := make([]Record, 0, len(doc.Packages)+len(doc.CondaPackages))
	channelURL := channel.BaseURL.String()
	project := func(entries map[string]PackageRecord) {
		for filename, pkg := range entries {
			rec := Record{
				PackageRecord: pkg,
				Filename:      filename,
				URL:           base.JoinPath(filename).String(),
				Channel:       channelURL,
			}
			if rec.Subdir == "" {
				rec.Subdir = doc.Info.Subdir
			}
			records = append(records, rec)
		}
	}
	project(doc.Packages)
	project(doc.CondaPackages)

	slices.SortFunc(records, func(a, b Record) int {
		return strings.Compare(a.Filename, b.Filename)
	})
	return records, nil
}

// resolveBaseURL applies a document's base_url to the subdir URL the document
// was downloaded from. Relative values resolve against the subdir, absolute
// values replace it. The result always ends with a slash so package filenames
// join as children.
func resolveBaseURL(subdirURL *url.URL, base string) (*url.URL, error) {
	if base == "" {
		return subdirURL, nil
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	ref, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	return subdirURL.ResolveReference(ref), nil
}

// parseGate bounds the number of CPU-bound document parses running at once so
// concurrent fetches do not monopolize every core.
type parseGate struct {
	sem *semaphore.Weighted
}

func newParseGate(workers int) *parseGate {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &parseGate{sem: semaphore.NewWeighted(int64(workers))}
}

// run executes fn on its own goroutine once a parse slot is free. It returns
// early when ctx is done; an abandoned fn keeps its slot until it finishes.
func (g *parseGate) run(ctx context.Context, fn func() ([]Record, error)) ([]Record, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	type result struct {
		records []Record
		err     error
	}
	out := make(chan result, 1)
	go func() {
		defer g.sem.Release(1)
		records, err := fn()
		out <- result{records: records, err: err}
	}()

	select {
	case res := <-out:
		return res.records, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
