package model

import "strings"

// IsHypertext reports whether rawURL uses the http or https scheme.
func IsHypertext(rawURL string) bool {
	scheme, _, ok := strings.Cut(rawURL, "//")
	if !ok {
		return false
	}
	return scheme == "http:" || scheme == "https:"
}

// Origin returns the scheme and host of an http(s) URL, e.g.
// "https://example.com" for "https://example.com/x?y". It is used as the
// favicon cache key so bookmarks on the same site share one icon.
func Origin(rawURL string) (string, bool) {
	if !IsHypertext(rawURL) {
		return "", false
	}
	scheme, rest, _ := strings.Cut(rawURL, "//")
	host := rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		host = rest[:i]
	}
	if host == "" {
		return "", false
	}
	return scheme + "//" + host, true
}
