package reggie

import (
	"net/url"
	"strings"
)

// DefaultProgramKeywords is the path keyword set used by the relevance
// filter. Overridable via discovery.program_keywords in config.
var DefaultProgramKeywords = []string{
	"program", "class", "activity", "activities", "recreation", "register",
	"youth", "adult", "senior", "sports", "swim", "soccer", "basketball",
	"fitness", "camp", "league", "course", "workshop", "aquatic",
}

// NormalizeHost lowercases a hostname and strips a leading "www.".
func NormalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// NormalizeURL canonicalizes a URL for dedup comparisons: scheme forced
// to https, host lowercased with the leading "www." stripped. Malformed
// input is returned unchanged so callers treat it as a distinct,
// non-deduplicable key.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	u.Scheme = "https"
	u.Host = NormalizeHost(u.Host)
	return u.String()
}

// IsProgramURL reports whether candidate likely hosts program listings
// for the site at baseURL: same host after "www." stripping and at
// least one keyword in the lowercased path. Unparseable URLs are
// rejected. Precision over recall: missing a program page is fine,
// fetching junk is not.
func IsProgramURL(candidate, baseURL string, keywords []string) bool {
	cu, err := url.Parse(candidate)
	if err != nil || cu.Host == "" {
		return false
	}
	bu, err := url.Parse(baseURL)
	if err != nil || bu.Host == "" {
		return false
	}
	if NormalizeHost(cu.Host) != NormalizeHost(bu.Host) {
		return false
	}
	path := strings.ToLower(cu.Path)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(path, kw) {
			return true
		}
	}
	return false
}
