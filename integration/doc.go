//go:build integration

// Package integration provides integration tests for the repodata library.
//
// These tests fetch real repodata from conda.anaconda.org and require
// network access. Run with: go test -tags=integration ./integration/...
package integration
