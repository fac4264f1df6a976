package transfer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

func compressZst(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	if _, err := enc.Write(data); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close encoder: %v", err)
	}
	return buf.Bytes()
}

func compressBz2(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.BestSpeed})
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	if _, err := enc.Write(data); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to close encoder: %v", err)
	}
	return buf.Bytes()
}

func TestPool_Decode(t *testing.T) {
	t.Parallel()

	content := []byte(`{"info":{"subdir":"linux-64"},"packages":{}}`)

	tests := []struct {
		name    string
		payload []byte
		enc     Encoding
		want    []byte
		wantErr bool
	}{
		{
			name:    "plain passthrough",
			payload: content,
			enc:     EncodingNone,
			want:    content,
		},
		{
			name:    "zstd",
			payload: compressZst(t, content),
			enc:     EncodingZst,
			want:    content,
		},
		{
			name:    "bzip2",
			payload: compressBz2(t, content),
			enc:     EncodingBz2,
			want:    content,
		},
		{
			name:    "truncated zstd",
			payload: compressZst(t, content)[:5],
			enc:     EncodingZst,
			wantErr: true,
		},
		{
			name:    "garbage bzip2",
			payload: []byte("definitely not bzip2"),
			enc:     EncodingBz2,
			wantErr: true,
		},
		{
			name:    "unknown encoding",
			payload: content,
			enc:     Encoding(42),
			wantErr: true,
		},
	}

	pool := NewPool(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := pool.Decode(bytes.NewReader(tt.payload), tt.enc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Decode() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Decode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPool_DecodeReuse(t *testing.T) {
	t.Parallel()

	// Sequential decodes share pooled decoders via Reset.
	pool := NewPool(0)
	for i := 0; i < 4; i++ {
		data := bytes.Repeat([]byte{byte('a' + i)}, 256)
		got, err := pool.Decode(bytes.NewReader(compressZst(t, data)), EncodingZst)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("Decode() round %d mismatch", i)
		}
	}
}

func TestPool_DecodeMemoryLimit(t *testing.T) {
	t.Parallel()

	// A tiny decoder window rejects payloads that decode past the limit.
	pool := NewPool(1 << 10)
	big := bytes.Repeat([]byte("repodata "), 4096)
	if _, err := pool.Decode(bytes.NewReader(compressZst(t, big)), EncodingZst); err == nil {
		t.Fatal("Decode() error = nil, want memory limit error")
	}
}

func TestEncoding_Strings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		enc    Encoding
		str    string
		suffix string
	}{
		{EncodingNone, "none", ""},
		{EncodingBz2, "bz2", ".bz2"},
		{EncodingZst, "zst", ".zst"},
	}
	for _, tt := range tests {
		if got := tt.enc.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if got := tt.enc.Suffix(); got != tt.suffix {
			t.Errorf("Suffix() = %q, want %q", got, tt.suffix)
		}
	}
	if got := Encoding(7).String(); !strings.HasPrefix(got, "unknown") {
		t.Errorf("String() = %q, want unknown prefix", got)
	}
}
