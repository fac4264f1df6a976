package repodata

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Platform names a channel subdirectory holding packages built for one
// OS and architecture pair, plus the architecture-independent noarch.
type Platform string

// Platforms with official conda builds.
const (
	PlatformNoArch       Platform = "noarch"
	PlatformLinux64      Platform = "linux-64"
	PlatformLinuxAarch64 Platform = "linux-aarch64"
	PlatformLinuxPpc64le Platform = "linux-ppc64le"
	PlatformOsx64        Platform = "osx-64"
	PlatformOsxArm64     Platform = "osx-arm64"
	PlatformWin64        Platform = "win-64"
)

// Channel identifies a package channel by name and base URL.
type Channel struct {
	Name    string
	BaseURL *url.URL
}

// NewChannel creates a channel from an absolute base URL. The URL is
// normalized to end with a slash. If name is empty it is derived from the
// last path segment of the URL.
func NewChannel(name, baseURL string) (Channel, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Channel{}, fmt.Errorf("repodata: invalid channel url %q: %w", baseURL, err)
	}
	if !u.IsAbs() {
		return Channel{}, fmt.Errorf("repodata: channel url %q is not absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if name == "" {
		name = path.Base(strings.TrimSuffix(u.Path, "/"))
		if name == "." || name == "/" {
			name = u.Host
		}
	}
	return Channel{Name: name, BaseURL: u}, nil
}

// PlatformURL returns the subdir URL for the given platform. The result ends
// with a slash so relative references resolve inside the subdir.
func (c Channel) PlatformURL(p Platform) *url.URL {
	u := *c.BaseURL
	u.Path += string(p) + "/"
	return &u
}

func (c Channel) String() string {
	return c.Name
}
