// Package transfer decodes the compression variants used for repodata
// downloads into plain bytes.
package transfer

import (
	"fmt"
	"io"
	"sync"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

// Encoding identifies the transfer encoding of a downloaded repodata document.
type Encoding uint8

const (
	// EncodingNone marks an uncompressed repodata.json payload.
	EncodingNone Encoding = iota
	// EncodingBz2 marks a bzip2 compressed payload.
	EncodingBz2
	// EncodingZst marks a zstandard compressed payload.
	EncodingZst
)

// String returns a human-readable name for the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingNone:
		return "none"
	case EncodingBz2:
		return "bz2"
	case EncodingZst:
		return "zst"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(e))
	}
}

// Suffix returns the filename suffix of the encoding's download variant,
// appended verbatim to "repodata.json". The empty suffix belongs to the
// uncompressed variant.
func (e Encoding) Suffix() string {
	switch e {
	case EncodingBz2:
		return ".bz2"
	case EncodingZst:
		return ".zst"
	default:
		return ""
	}
}

// Pool decodes download payloads while reusing zstd decoders across calls to
// reduce allocation overhead.
type Pool struct {
	pool             *sync.Pool
	maxDecoderMemory uint64
}

// NewPool creates a decoder pool.
// If maxMemory is 0, no memory limit is applied to zstd decoders.
func NewPool(maxMemory uint64) *Pool {
	p := &Pool{
		maxDecoderMemory: maxMemory,
	}
	p.pool = &sync.Pool{
		New: func() any {
			dec, err := p.newDecoder(nil)
			if err != nil {
				return nil
			}
			return dec
		},
	}
	return p
}

// Decode reads r to completion, reversing the given transfer encoding, and
// returns the decoded document bytes.
func (p *Pool) Decode(r io.Reader, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingNone:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return data, nil
	case EncodingBz2:
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return nil, fmt.Errorf("bzip2 init: %w", err)
		}
		data, err := io.ReadAll(br)
		if err != nil {
			return nil, fmt.Errorf("bzip2 decode: %w", err)
		}
		if err := br.Close(); err != nil {
			return nil, fmt.Errorf("bzip2 close: %w", err)
		}
		return data, nil
	case EncodingZst:
		dec, release, err := p.get(r)
		if err != nil {
			return nil, fmt.Errorf("zstd init: %w", err)
		}
		defer release()
		data, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %s", enc)
	}
}

// get returns a zstd decoder configured to read from r.
// The caller must call the returned release function when done.
// If an error is returned, no release function needs to be called.
func (p *Pool) get(r io.Reader) (*zstd.Decoder, func(), error) {
	if p == nil || p.pool == nil {
		// No pool available, create a one-off decoder
		dec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	}

	value := p.pool.Get()
	if value == nil {
		// Pool's New function failed, try directly
		dec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return dec, dec.Close, nil
	}

	dec, ok := value.(*zstd.Decoder)
	if !ok {
		// Unexpected type in pool, create new
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	if err := dec.Reset(r); err != nil {
		// Reset failed, close this one and create new
		dec.Close()
		newDec, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	// Return decoder with release function that returns it to pool
	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.pool.Put(dec)
	}, nil
}

// newDecoder creates a new zstd decoder with the configured memory limit.
func (p *Pool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	if p == nil || p.maxDecoderMemory == 0 {
		return zstd.NewReader(r)
	}
	return zstd.NewReader(r, zstd.WithDecoderMaxMemory(p.maxDecoderMemory))
}
