// Package testutil provides repodata fixtures and a fake channel server for
// tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
)

// Document mirrors the repodata.json wire schema for building fixtures.
type Document struct {
	Info          Info               `json:"info"`
	Packages      map[string]Package `json:"packages"`
	CondaPackages map[string]Package `json:"packages.conda,omitempty"`
	Removed       []string           `json:"removed,omitempty"`
	Version       int                `json:"repodata_version,omitempty"`
}

// Info mirrors the info block of a repodata document.
type Info struct {
	Subdir  string `json:"subdir"`
	BaseURL string `json:"base_url,omitempty"`
}

// Package mirrors one package entry of a repodata document.
type Package struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Build       string   `json:"build"`
	BuildNumber uint64   `json:"build_number"`
	Subdir      string   `json:"subdir,omitempty"`
	Depends     []string `json:"depends,omitempty"`
	MD5         string   `json:"md5,omitempty"`
	SHA256      string   `json:"sha256,omitempty"`
	Size        uint64   `json:"size,omitempty"`
	License     string   `json:"license,omitempty"`
	Timestamp   uint64   `json:"timestamp,omitempty"`
	NoArch      string   `json:"noarch,omitempty"`
}

// JSON marshals the document.
func (d Document) JSON(tb testing.TB) []byte {
	tb.Helper()
	data, err := json.Marshal(d)
	if err != nil {
		tb.Fatalf("failed to marshal document: %v", err)
	}
	return data
}

// CompressZst returns data as a zstandard stream.
func CompressZst(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		tb.Fatalf("failed to create zstd encoder: %v", err)
	}
	if _, err := enc.Write(data); err != nil {
		tb.Fatalf("failed to compress: %v", err)
	}
	if err := enc.Close(); err != nil {
		tb.Fatalf("failed to close zstd encoder: %v", err)
	}
	return buf.Bytes()
}

// CompressBz2 returns data as a bzip2 stream.
func CompressBz2(tb testing.TB, data []byte) []byte {
	tb.Helper()
	var buf bytes.Buffer
	enc, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestSpeed})
	if err != nil {
		tb.Fatalf("failed to create bzip2 encoder: %v", err)
	}
	if _, err := enc.Write(data); err != nil {
		tb.Fatalf("failed to compress: %v", err)
	}
	if err := enc.Close(); err != nil {
		tb.Fatalf("failed to close bzip2 encoder: %v", err)
	}
	return buf.Bytes()
}

// ChannelServer fakes a conda channel over HTTP. Files are registered by URL
// path; the server answers HEAD probes, serves GETs with an ETag derived from
// the content, and honors If-None-Match with 304 responses.
type ChannelServer struct {
	*httptest.Server

	mu          sync.Mutex
	files       map[string][]byte
	etags       map[string]string
	statuses    map[string]int
	gets        map[string]int
	heads       map[string]int
	notModified map[string]int
	userAgents  map[string]string
	latency     time.Duration
}

// NewChannelServer starts a fake channel. It is shut down via tb.Cleanup.
func NewChannelServer(tb testing.TB) *ChannelServer {
	s := &ChannelServer{
		files:       make(map[string][]byte),
		etags:       make(map[string]string),
		statuses:    make(map[string]int),
		gets:        make(map[string]int),
		heads:       make(map[string]int),
		notModified: make(map[string]int),
		userAgents:  make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	tb.Cleanup(s.Close)
	return s
}

// SetFile registers content at the given URL path and refreshes its ETag.
func (s *ChannelServer) SetFile(path string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = data
	s.etags[path] = `"` + digest.FromBytes(data).Encoded()[:16] + `"`
}

// RemoveFile unregisters the given URL path.
func (s *ChannelServer) RemoveFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	delete(s.etags, path)
}

// SetStatus forces every request for path to answer with the given status.
func (s *ChannelServer) SetStatus(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[path] = code
}

// SetLatency delays every GET response body by d.
func (s *ChannelServer) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// GetCount reports how many full-body GET responses were served for path.
// Conditional requests answered with 304 are counted separately.
func (s *ChannelServer) GetCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[path]
}

// HeadCount reports how many HEAD requests were received for path.
func (s *ChannelServer) HeadCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heads[path]
}

// NotModifiedCount reports how many 304 responses were served for path.
func (s *ChannelServer) NotModifiedCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notModified[path]
}

// UserAgent reports the User-Agent header of the last request for path.
func (s *ChannelServer) UserAgent(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userAgents[path]
}

func (s *ChannelServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, ok := s.files[r.URL.Path]
	etag := s.etags[r.URL.Path]
	status := s.statuses[r.URL.Path]
	latency := s.latency
	s.userAgents[r.URL.Path] = r.Header.Get("User-Agent")
	if r.Method == http.MethodHead {
		s.heads[r.URL.Path]++
	}
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		return
	}

	if latency > 0 {
		time.Sleep(latency)
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		s.mu.Lock()
		s.notModified[r.URL.Path]++
		s.mu.Unlock()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	s.mu.Lock()
	s.gets[r.URL.Path]++
	s.mu.Unlock()
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 00:00:00 GMT")
	_, _ = w.Write(data)
}
