package crawler

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// maxRobotsSize caps how much of a robots.txt file is read.
const maxRobotsSize = 1 * 1024 * 1024

// RobotsRules contains parsed robots.txt rules for the wildcard user agent
type RobotsRules struct {
	// Allow are path prefixes explicitly permitted
	Allow []string
	// Disallow are path prefixes that should not be crawled
	Disallow []string
	// Sitemaps found anywhere in robots.txt
	Sitemaps []string
}

// ParseRobotsTxt parses robots.txt content.
//
// Only groups addressed to "User-agent: *" contribute Allow and Disallow
// rules; per-agent group selection is not supported. Sitemap lines are
// collected regardless of group. Keys are case-insensitive and only the first
// colon separates key from value, so "Sitemap: https://..." keeps its scheme.
func ParseRobotsTxt(r io.Reader) (*RobotsRules, error) {
	rules := &RobotsRules{
		Allow:    []string{},
		Disallow: []string{},
		Sitemaps: []string{},
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRobotsSize)

	// Consecutive User-agent lines form one group
	var inWildcardGroup bool
	var lastWasAgent bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if key == "user-agent" {
			if !lastWasAgent {
				inWildcardGroup = false
			}
			if value == "*" {
				inWildcardGroup = true
			}
			lastWasAgent = true
			continue
		}
		lastWasAgent = false

		switch key {
		case "sitemap":
			if value != "" {
				rules.Sitemaps = append(rules.Sitemaps, value)
			}
		case "disallow":
			if inWildcardGroup && value != "" {
				rules.Disallow = append(rules.Disallow, value)
			}
		case "allow":
			if inWildcardGroup && value != "" {
				rules.Allow = append(rules.Allow, value)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading robots.txt: %w", err)
	}

	log.Debug().
		Int("sitemaps", len(rules.Sitemaps)).
		Int("disallow_patterns", len(rules.Disallow)).
		Int("allow_patterns", len(rules.Allow)).
		Msg("Parsed robots.txt rules")

	return rules, nil
}

// IsAllowed checks whether rawURL may be fetched under rules. Rules are matched
// against the decoded path. Unparsable URLs and nil rules are allowed.
func IsAllowed(rules *RobotsRules, rawURL string) bool {
	if rules == nil {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	return IsPathAllowed(rules, path)
}

// IsPathAllowed checks if a path is allowed by robots.txt rules.
// The longest matching Allow prefix is compared against the longest matching
// Disallow prefix and ties go to Allow.
func IsPathAllowed(rules *RobotsRules, path string) bool {
	// No rules means everything is allowed
	if rules == nil || len(rules.Disallow) == 0 {
		return true
	}

	allow := longestPrefix(rules.Allow, path)
	disallow := longestPrefix(rules.Disallow, path)
	return len(allow) >= len(disallow)
}

func longestPrefix(prefixes []string, path string) string {
	best := ""
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(path, p) && len(p) > len(best) {
			best = p
		}
	}
	return best
}

// FetchRobots retrieves and parses <origin>/robots.txt. Any failure yields nil,
// which IsAllowed treats as "everything allowed".
func FetchRobots(ctx context.Context, fetcher Fetcher, origin string) *RobotsRules {
	robotsURL := strings.TrimSuffix(origin, "/") + "/robots.txt"

	log.Debug().
		Str("robots_url", robotsURL).
		Msg("Fetching robots.txt")

	resp, err := fetcher.Fetch(ctx, robotsURL)
	if err != nil {
		log.Debug().
			Err(err).
			Str("robots_url", robotsURL).
			Msg("Failed to fetch robots.txt, proceeding with no restrictions")
		return nil
	}
	if !resp.OK() {
		log.Debug().
			Int("status", resp.StatusCode).
			Str("robots_url", robotsURL).
			Msg("No usable robots.txt, no restrictions apply")
		return nil
	}

	body := resp.Body
	if len(body) > maxRobotsSize {
		log.Warn().
			Int("size_bytes", len(body)).
			Msg("Robots.txt file truncated at 1MB limit")
		body = body[:maxRobotsSize]
	}

	rules, err := ParseRobotsTxt(bytes.NewReader(body))
	if err != nil {
		log.Debug().Err(err).Str("robots_url", robotsURL).Msg("Unparsable robots.txt ignored")
		return nil
	}
	return rules
}
