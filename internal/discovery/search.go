package discovery

import (
	"net/url"

	"github.com/openrec/reggie/internal/reggie"
)

// DedupSearchResults denoises raw search hits into site candidates:
// denylisted hosts are dropped, each survivor is classified, and each
// host keeps only its shortest URL. Emission follows the first-seen
// order of each host in the input.
func DedupSearchResults(results []reggie.SearchResult, denylist *reggie.HostDenylist, classifier *reggie.SiteTypeClassifier) []reggie.SiteCandidate {
	type slot struct {
		candidate reggie.SiteCandidate
		order     int
	}
	byHost := map[string]*slot{}
	order := []string{}

	for _, r := range results {
		parsed, err := url.Parse(r.URL)
		if err != nil || parsed.Hostname() == "" {
			continue
		}
		host := reggie.NormalizeHost(parsed.Hostname())
		if denylist.Matches(parsed.Hostname()) {
			continue
		}

		existing, ok := byHost[host]
		if ok && len(existing.candidate.URL) <= len(r.URL) {
			continue
		}

		candidate := reggie.SiteCandidate{
			URL:         r.URL,
			Name:        r.Title,
			Description: r.Description,
			Type:        classifier.Classify(r.URL),
		}
		if ok {
			existing.candidate = candidate
			continue
		}
		byHost[host] = &slot{candidate: candidate, order: len(order)}
		order = append(order, host)
	}

	out := make([]reggie.SiteCandidate, 0, len(order))
	for _, host := range order {
		out = append(out, byHost[host].candidate)
	}
	return out
}
