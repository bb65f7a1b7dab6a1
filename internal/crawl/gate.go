package crawl

import "bytes"

// minStaticHTMLBytes is the body size below which a page is assumed to
// be a JS shell rather than real content.
const minStaticHTMLBytes = 512

var jsGateMarkers = [][]byte{
	[]byte("enable javascript"),
	[]byte("javascript is required"),
	[]byte("javascript to run this app"),
	[]byte("please turn on javascript"),
}

// looksJSGated inspects a static fetch for signals that the real
// content only appears after client-side rendering.
func looksJSGated(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	if len(body) < minStaticHTMLBytes {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range jsGateMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}
