package httpds

import (
	"fmt"
	"net/url"
	"path"
	"regexp"

	"github.com/zeebo/xxh3"
)

// filenameCleaner replaces runs of characters that are unsafe in file names.
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// HashString returns a stable 16-hex-digit digest of s.
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(s))
}

// SafeFilenameFromURL derives a filesystem-safe name from the last path
// segment of rawURL, e.g. "yellow_tripdata_2019-01.csv". It falls back to a
// hash of the whole URL when the URL cannot be parsed or has no usable path.
func SafeFilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return HashString(rawURL)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return HashString(rawURL)
	}
	clean := filenameCleaner.ReplaceAllString(base, "_")
	if clean == "" || clean == "_" || clean == "." || clean == ".." {
		return HashString(rawURL)
	}
	return clean
}
