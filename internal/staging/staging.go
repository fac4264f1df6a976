// Package staging keeps decoded repodata bodies and their HTTP validators on
// disk so an expired cache entry can be revalidated with a conditional request
// instead of re-downloaded in full.
package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
)

const (
	bodySuffix = ".json"
	metaSuffix = ".meta.json"
	dirPerm    = 0o700
)

// Store is a flat directory of staged repodata documents keyed by the digest
// of their subdir URL. Bodies are stored decoded; the sidecar records which
// variant URL produced them and the validators the server sent.
type Store struct {
	dir string
}

// Meta describes one staged body.
type Meta struct {
	// URL is the exact variant URL the body was downloaded from.
	URL          string `json:"url"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	// Digest pins the body these validators belong to. Put fills it in.
	Digest    digest.Digest `json:"digest"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// New creates a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("staging dir is empty")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Meta returns the sidecar for the given subdir URL. The second return is
// false when no staged document exists or the sidecar cannot be decoded.
func (s *Store) Meta(u *url.URL) (Meta, bool) {
	data, err := os.ReadFile(s.metaPath(u))
	if err != nil {
		return Meta{}, false
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, false
	}
	if m.URL == "" || m.Digest == "" {
		return Meta{}, false
	}
	return m, true
}

// ReadBody returns the staged decoded body for the given subdir URL. The body
// is verified against want, so validators from a sidecar are never paired
// with a body they did not validate.
func (s *Store) ReadBody(u *url.URL, want digest.Digest) ([]byte, error) {
	body, err := os.ReadFile(s.BodyPath(u))
	if err != nil {
		return nil, err
	}
	if got := digest.FromBytes(body); got != want {
		return nil, fmt.Errorf("staged body digest %s does not match sidecar %s", got, want)
	}
	return body, nil
}

// Put stages body and its sidecar for the given subdir URL, replacing any
// previous staging. The body lands before the sidecar, and the sidecar records
// the body's digest, so an interrupted replacement leaves validators that no
// longer match and the staged pair reads as unusable instead of wrong.
func (s *Store) Put(u *url.URL, m Meta, body []byte) error {
	m.Digest = digest.FromBytes(body)
	if err := s.writeFile(s.BodyPath(u), body); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.writeFile(s.metaPath(u), data)
}

// BodyPath returns the path the decoded body for u is staged at.
func (s *Store) BodyPath(u *url.URL) string {
	return filepath.Join(s.dir, s.key(u)+bodySuffix)
}

func (s *Store) metaPath(u *url.URL) string {
	return filepath.Join(s.dir, s.key(u)+metaSuffix)
}

func (s *Store) key(u *url.URL) string {
	return digest.FromString(u.String()).Encoded()
}

// writeFile writes data to path via a temp file and rename so readers never
// observe a partial file.
func (s *Store) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "staging-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
