package repodata

import "errors"

// Sentinel errors for fetch operations.
var (
	// ErrTransport is returned when the remote cannot be reached, answers a
	// download with a non-success status, or the response stream fails to
	// decompress.
	ErrTransport = errors.New("repodata: transport failure")

	// ErrParse is returned when a downloaded document cannot be decoded into
	// the repodata schema.
	ErrParse = errors.New("repodata: parse failure")
)
