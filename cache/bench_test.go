package cache

import (
	"context"
	"strconv"
	"testing"
	"time"
)

var benchSinkBytes []byte

func BenchmarkGetCachedHit(b *testing.B) {
	c := New[string, []byte](time.Hour)
	ctx := context.Background()

	_, handle, err := c.GetCached(ctx, "hot")
	if err != nil {
		b.Fatal(err)
	}
	handle.Commit([]byte("cached payload"))

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		value, _, err := c.GetCached(ctx, "hot")
		if err != nil {
			b.Fatal(err)
		}
		benchSinkBytes = value
	}
}

func BenchmarkGetCachedMissCommit(b *testing.B) {
	c := New[string, []byte](time.Hour)
	ctx := context.Background()
	payload := []byte("cached payload")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; b.Loop(); i++ {
		_, handle, err := c.GetCached(ctx, strconv.Itoa(i))
		if err != nil {
			b.Fatal(err)
		}
		handle.Commit(payload)
	}
}
