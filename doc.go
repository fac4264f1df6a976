// Package repodata downloads, parses and caches conda channel index
// documents.
//
// A channel publishes one repodata.json per platform subdir, usually
// alongside zstandard and bzip2 compressed variants. [Cache.Get] probes for
// the variants, downloads the preferred one, parses it off the calling
// goroutine and caches the resulting records in memory for a fixed time to
// live. Concurrent lookups of the same subdir share a single download.
//
// # Quick Start
//
// Fetch the package records of a channel subdir:
//
//	cache, err := repodata.New(5*time.Minute, "/var/cache/repodata")
//	if err != nil {
//	    return err
//	}
//	channel, err := repodata.NewChannel("conda-forge", "https://conda.anaconda.org/conda-forge")
//	if err != nil {
//	    return err
//	}
//	records, err := cache.Get(ctx, channel, repodata.PlatformLinux64)
//
// # Expiry
//
// Cached records expire a fixed duration after their download finished.
// Expired entries are re-fetched on the next Get; call [Cache.GC]
// periodically to release their memory between Gets.
//
// # Disk staging
//
// With a cache directory configured, decoded documents are staged on disk
// together with their HTTP validators. A re-fetch of an expired entry then
// sends a conditional request, and an unchanged remote answers 304 Not
// Modified instead of transferring the document again.
package repodata
