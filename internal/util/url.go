package util

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// NormaliseBaseURL trims the input, adds an https:// scheme when none is present
// and validates that the result has a host. Returns an error describing why the
// URL is unusable.
func NormaliseBaseURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("url cannot be empty")
	}

	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}

	// Ensure no duplicate schemes (like https://http://example.com)
	if strings.Contains(parsedURL.Host, ":/") {
		return "", fmt.Errorf("url %q contains an embedded scheme", rawURL)
	}

	return parsedURL.String(), nil
}

// normaliseHostPort removes default ports (80 for HTTP, 443 for HTTPS) from host.
func normaliseHostPort(host, scheme string) string {
	if scheme == "http" && strings.HasSuffix(host, ":80") {
		return strings.TrimSuffix(host, ":80")
	}
	if scheme == "https" && strings.HasSuffix(host, ":443") {
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

// Origin returns the scheme://host[:port] of a parsed URL with default ports
// removed and the host lowercased. Opaque schemes (file:, mailto:) have no host
// and return "scheme://".
func Origin(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := normaliseHostPort(strings.ToLower(u.Host), scheme)
	return scheme + "://" + host
}

// OriginOf parses rawURL and returns its origin.
func OriginOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}
	return Origin(u), nil
}

// SameOrigin reports whether ref, resolved against base, shares base's origin.
// Unparsable input is never same-origin.
func SameOrigin(base *url.URL, ref string) bool {
	resolved, err := base.Parse(ref)
	if err != nil {
		return false
	}
	return Origin(resolved) == Origin(base)
}

// Resolve resolves href against base and returns the absolute form.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}

// IsHTTP reports whether the URL uses the http or https scheme.
func IsHTTP(u *url.URL) bool {
	return u.Scheme == "http" || u.Scheme == "https"
}

// ExtractPathFromURL extracts just the path component from a full URL.
// Unparsable URLs and URLs without a path map to "/".
func ExtractPathFromURL(fullURL string) string {
	u, err := url.Parse(fullURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// JoinPath builds an absolute URL from a base URL and a route path.
func JoinPath(baseURL, routePath string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(routePath)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// FileURL returns the synthetic file:// URL used for pages read from disk.
func FileURL(absPath string) string {
	p := filepath.ToSlash(absPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p
}

var (
	indexHTMLSuffix = regexp.MustCompile(`(?i)index\.html?$`)
	htmlSuffix      = regexp.MustCompile(`(?i)\.html?$`)
)

// ToRoutePath maps a build-output file path (relative, any separator) to the
// route it serves: "about/index.html" → "/about/", "docs/intro.html" → "/docs/intro".
func ToRoutePath(rel string) string {
	p := strings.ReplaceAll(rel, "\\", "/")
	p = indexHTMLSuffix.ReplaceAllString(p, "")
	p = htmlSuffix.ReplaceAllString(p, "")
	route := "/" + strings.TrimLeft(p, "/")

	log.Trace().Str("file", rel).Str("route", route).Msg("Mapped file to route")
	return route
}
