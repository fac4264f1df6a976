package repodata

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/volans-io/repodata/internal/testutil"
)

var benchSinkRecords []Record

func BenchmarkProjectRecords(b *testing.B) {
	cases := []struct {
		name     string
		packages int
	}{
		{name: "packages=1k", packages: 1_000},
		{name: "packages=16k", packages: 16_000},
	}

	for _, bc := range cases {
		b.Run(bc.name, func(b *testing.B) {
			raw := benchDocument(b, bc.packages)
			channel, err := NewChannel("bench", "https://bench.example.com/channel")
			if err != nil {
				b.Fatal(err)
			}
			subdirURL := channel.PlatformURL(PlatformLinux64)

			b.SetBytes(int64(len(raw)))
			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				records, err := projectRecords(raw, channel, subdirURL)
				if err != nil {
					b.Fatal(err)
				}
				benchSinkRecords = records
			}
		})
	}
}

func BenchmarkCacheGetHit(b *testing.B) {
	srv := testutil.NewChannelServer(b)
	raw := benchDocument(b, 1_000)
	srv.SetFile(zstPath, testutil.CompressZst(b, raw))

	c, err := New(time.Hour, b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	channel, err := NewChannel("bench", srv.URL+"/channel")
	if err != nil {
		b.Fatal(err)
	}

	ctx := context.Background()
	if _, err := c.Get(ctx, channel, PlatformLinux64); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		records, err := c.Get(ctx, channel, PlatformLinux64)
		if err != nil {
			b.Fatal(err)
		}
		benchSinkRecords = records
	}
}

func benchDocument(b *testing.B, packages int) []byte {
	b.Helper()

	doc := testutil.Document{
		Info:     testutil.Info{Subdir: "linux-64"},
		Packages: make(map[string]testutil.Package, packages),
		Version:  2,
	}
	for i := range packages {
		name := fmt.Sprintf("pkg%06d", i)
		doc.Packages[fmt.Sprintf("%s-1.0.%d-h%04d_0.tar.bz2", name, i%100, i)] = testutil.Package{
			Name:      name,
			Version:   fmt.Sprintf("1.0.%d", i%100),
			Build:     fmt.Sprintf("h%04d_0", i),
			Depends:   []string{"libc >=2.17"},
			Size:      uint64(1024 * (i%64 + 1)),
			Timestamp: 1700000000000,
		}
	}
	return doc.JSON(b)
}
