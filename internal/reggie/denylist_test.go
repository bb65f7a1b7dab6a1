package reggie

import "testing"

func TestHostDenylist(t *testing.T) {
	t.Run("exact and subdomain match", func(t *testing.T) {
		d := NewHostDenylist([]string{"facebook.com", "Docs.Google.com"})
		cases := []struct {
			host    string
			matched bool
		}{
			{"facebook.com", true},
			{"www.facebook.com", true},
			{"m.facebook.com", true},
			{"docs.google.com", true},
			{"google.com", false},
			{"notfacebook.com", false},
			{"cityrec.example.com", false},
		}
		for _, tc := range cases {
			if got := d.Matches(tc.host); got != tc.matched {
				t.Fatalf("Matches(%q) = %v, want %v", tc.host, got, tc.matched)
			}
		}
	})

	t.Run("nil denylist matches nothing", func(t *testing.T) {
		var d *HostDenylist
		if d.Matches("facebook.com") {
			t.Fatalf("nil denylist should never match")
		}
	})

	t.Run("empty entries skipped", func(t *testing.T) {
		d := NewHostDenylist([]string{"", "  ", "yelp.com"})
		if !d.Matches("yelp.com") {
			t.Fatalf("expected yelp.com to match")
		}
		if d.Matches("") {
			t.Fatalf("empty host should never match")
		}
	})
}

func TestSiteTypeClassifier(t *testing.T) {
	c := NewSiteTypeClassifier(DefaultPortalSignatures)

	cases := []struct {
		url  string
		want string
	}{
		{"https://anytown.perfectmind.com/browse", SiteTypePortal},
		{"https://ca.activenetwork.com/home", SiteTypePortal},
		{"https://recdesk.example.com", SiteTypePortal},
		{"https://www.cityofanytown.gov/recreation", SiteTypeDirect},
		{"://broken", SiteTypeDirect},
		{"", SiteTypeDirect},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.url); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
