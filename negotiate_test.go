package repodata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volans-io/repodata/internal/testutil"
	"github.com/volans-io/repodata/internal/transfer"
)

func TestCheckVariantAvailability(t *testing.T) {
	t.Parallel()

	srv := testutil.NewChannelServer(t)
	srv.SetFile("/channel/linux-64/repodata.json.zst", []byte("z"))

	subdir := mustParseURL(t, srv.URL+"/channel/linux-64/")
	avail := CheckVariantAvailability(context.Background(), srv.Client(), subdir)

	assert.True(t, avail.HasZst)
	assert.False(t, avail.HasBz2)

	assert.Equal(t, 1, srv.HeadCount("/channel/linux-64/repodata.json.zst"))
	assert.Equal(t, 1, srv.HeadCount("/channel/linux-64/repodata.json.bz2"))
	assert.Equal(t, 0, srv.GetCount("/channel/linux-64/repodata.json.zst"), "probes must not download")
}

func TestCheckVariantAvailabilityUnreachable(t *testing.T) {
	t.Parallel()

	srv := testutil.NewChannelServer(t)
	subdir := mustParseURL(t, srv.URL+"/channel/linux-64/")
	client := srv.Client()
	srv.Close()

	// A dead remote reads as "no variants offered", never as an error.
	avail := CheckVariantAvailability(context.Background(), client, subdir)
	assert.False(t, avail.HasZst)
	assert.False(t, avail.HasBz2)
}

func TestSelectVariant(t *testing.T) {
	t.Parallel()

	subdir := mustParseURL(t, "https://example.com/channel/linux-64/")

	tests := []struct {
		name    string
		avail   VariantAvailability
		wantURL string
		wantEnc transfer.Encoding
	}{
		{
			name:    "zst preferred over bz2",
			avail:   VariantAvailability{HasZst: true, HasBz2: true},
			wantURL: "https://example.com/channel/linux-64/repodata.json.zst",
			wantEnc: transfer.EncodingZst,
		},
		{
			name:    "zst only",
			avail:   VariantAvailability{HasZst: true},
			wantURL: "https://example.com/channel/linux-64/repodata.json.zst",
			wantEnc: transfer.EncodingZst,
		},
		{
			name:    "bz2 fallback",
			avail:   VariantAvailability{HasBz2: true},
			wantURL: "https://example.com/channel/linux-64/repodata.json.bz2",
			wantEnc: transfer.EncodingBz2,
		},
		{
			name:    "plain fallback",
			avail:   VariantAvailability{},
			wantURL: "https://example.com/channel/linux-64/repodata.json",
			wantEnc: transfer.EncodingNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u, enc := selectVariant(subdir, tt.avail)
			require.Equal(t, tt.wantURL, u.String())
			assert.Equal(t, tt.wantEnc, enc)
		})
	}
}
