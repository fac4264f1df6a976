package repodata

import "encoding/json"

// NoArch marks a package that installs identically on every platform.
// Old repodata documents encode it as boolean true, newer ones as "python"
// or "generic".
type NoArch string

// NoArch values.
const (
	NoArchNone    NoArch = ""
	NoArchGeneric NoArch = "generic"
	NoArchPython  NoArch = "python"
)

// UnmarshalJSON accepts both the legacy boolean and the string encoding.
func (n *NoArch) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "null", "false":
		*n = NoArchNone
		return nil
	case "true":
		*n = NoArchGeneric
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*n = NoArch(s)
	return nil
}

// PackageRecord is one package's metadata as it appears in a repodata
// document.
type PackageRecord struct {
	Name          string   `json:"name"`
	Version       string   `json:"version"`
	Build         string   `json:"build"`
	BuildNumber   uint64   `json:"build_number"`
	Subdir        string   `json:"subdir,omitempty"`
	Depends       []string `json:"depends,omitempty"`
	Constrains    []string `json:"constrains,omitempty"`
	MD5           string   `json:"md5,omitempty"`
	SHA256        string   `json:"sha256,omitempty"`
	Size          uint64   `json:"size,omitempty"`
	License       string   `json:"license,omitempty"`
	LicenseFamily string   `json:"license_family,omitempty"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp uint64 `json:"timestamp,omitempty"`
	NoArch    NoArch `json:"noarch,omitempty"`
}

// Record is a package record located in a concrete channel, carrying
// everything a solver needs to identify and download the package.
type Record struct {
	PackageRecord

	// Filename is the record's key in the repodata document, for example
	// "zlib-1.3.1-hb9d3cd8_2.conda".
	Filename string `json:"fn"`
	// URL is the absolute download location of the package archive.
	URL string `json:"url"`
	// Channel is the canonical base URL of the channel the record came from.
	Channel string `json:"channel"`
}

// document is the wire form of a repodata.json file.
type document struct {
	Info          documentInfo             `json:"info"`
	Packages      map[string]PackageRecord `json:"packages"`
	CondaPackages map[string]PackageRecord `json:"packages.conda"`
	Removed       []string                 `json:"removed"`
	Version       int                      `json:"repodata_version"`
}

// documentInfo carries the subdir identity and the optional base_url
// override for package downloads.
type documentInfo struct {
	Subdir  string `json:"subdir"`
	BaseURL string `json:"base_url"`
}
