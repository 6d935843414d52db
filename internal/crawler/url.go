package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so the visit tracker sees one spelling
// per page: lowercase scheme and host, no default port, no fragment,
// sorted query parameters, no trailing slash on non-root paths.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	switch u.Path {
	case "", "/":
		u.Path = "/"
	default:
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String(), nil
}

// SameHost reports whether candidate shares the seed's host. Ports count:
// example.it:8080 is a different host than example.it.
func SameHost(seed, candidate string) bool {
	a, err := url.Parse(seed)
	if err != nil {
		return false
	}
	b, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(a.Host, b.Host)
}

// resolveLink turns an anchor href into an absolute URL relative to the
// page it appeared on. Empty, mailto, javascript and anchor-only links
// resolve to "".
func resolveLink(pageURL *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := pageURL.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
