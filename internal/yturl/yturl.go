// Package yturl validates submitted YouTube URLs and extracts the 11-character
// video identifier used to correlate HTTP responses and channel pushes.
package yturl

import (
	"fmt"
	"regexp"
)

// The accepted shapes are the long watch form and the youtu.be short form,
// each followed by an 11-character opaque id. Scheme and www. are optional,
// trailing query parameters are ignored.
var videoIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([A-Za-z0-9_-]{11})(?:[&?#]|$)`)

// ExtractVideoID returns the 11-character video id from a YouTube URL, or an
// error when the URL does not match an accepted shape. It performs no network
// access.
func ExtractVideoID(rawURL string) (string, error) {
	if rawURL == "" {
		return "", fmt.Errorf("empty URL")
	}
	m := videoIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("not a recognized YouTube video URL: %q", rawURL)
	}
	return m[1], nil
}

// Validate reports whether the URL is an accepted YouTube video URL.
func Validate(rawURL string) error {
	_, err := ExtractVideoID(rawURL)
	return err
}
