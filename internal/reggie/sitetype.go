package reggie

import (
	"net/url"
	"strings"
)

// DefaultPortalSignatures are hostname fragments of known third-party
// recreation-booking platforms. Best effort: false negatives are
// expected and handled by discovery failing gracefully.
var DefaultPortalSignatures = []string{
	"activenet", "perfectmind", "recdesk", "civicrec", "myrec",
	"recreationlink", "vermontsystems", "daxko", "rec1", "amilia",
}

// SiteTypeClassifier flags URLs hosted on third-party booking portals,
// which the discovery pipeline does not support.
type SiteTypeClassifier struct {
	signatures []string
}

// NewSiteTypeClassifier builds a classifier from hostname fragments.
func NewSiteTypeClassifier(signatures []string) *SiteTypeClassifier {
	c := &SiteTypeClassifier{}
	for _, raw := range signatures {
		value := strings.TrimSpace(strings.ToLower(raw))
		if value == "" {
			continue
		}
		c.signatures = append(c.signatures, value)
	}
	return c
}

// Classify returns SiteTypePortal when the URL's hostname contains any
// known portal signature, SiteTypeDirect otherwise. Parse failures
// default to direct.
func (c *SiteTypeClassifier) Classify(rawURL string) string {
	if c == nil {
		return SiteTypeDirect
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return SiteTypeDirect
	}
	host := strings.ToLower(u.Hostname())
	for _, sig := range c.signatures {
		if strings.Contains(host, sig) {
			return SiteTypePortal
		}
	}
	return SiteTypeDirect
}
