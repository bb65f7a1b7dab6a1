package reggie

import "strings"

// DefaultSearchDenylist holds hosts that never lead to program
// listings: social media, review and event aggregators, document
// hosting, local news. Matched exactly or as a parent domain.
var DefaultSearchDenylist = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com",
	"youtube.com", "linkedin.com", "yelp.com", "tripadvisor.com",
	"eventbrite.com", "meetup.com", "nextdoor.com", "pinterest.com",
	"scribd.com", "issuu.com", "docs.google.com", "patch.com",
	"wikipedia.org", "reddit.com", "tiktok.com",
}

// HostDenylist matches hostnames against a configured set, by exact
// host or by subdomain of an entry.
type HostDenylist struct {
	domains []string
}

// NewHostDenylist builds a matcher from the given domains, trimming
// and lowercasing each. Empty entries are skipped.
func NewHostDenylist(domains []string) *HostDenylist {
	d := &HostDenylist{}
	for _, raw := range domains {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		d.domains = append(d.domains, value)
	}
	return d
}

// Matches reports whether host equals an entry or is a subdomain of
// one. A nil denylist matches nothing.
func (d *HostDenylist) Matches(host string) bool {
	if d == nil {
		return false
	}
	host = NormalizeHost(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	for _, domain := range d.domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
