package reggie

import "testing"

func TestNormalizeURL(t *testing.T) {
	t.Run("strips www and forces https", func(t *testing.T) {
		got := NormalizeURL("http://WWW.Foo.com/x")
		want := "https://foo.com/x"
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
		if got != NormalizeURL("https://foo.com/x") {
			t.Fatalf("variants did not normalize to the same key")
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		u := "http://www.Example.com/Programs?a=1"
		once := NormalizeURL(u)
		twice := NormalizeURL(once)
		if once != twice {
			t.Fatalf("not idempotent: %q vs %q", once, twice)
		}
	})

	t.Run("malformed input returned unchanged", func(t *testing.T) {
		for _, raw := range []string{"", "not a url", "://bad", "relative/path"} {
			if got := NormalizeURL(raw); got != raw {
				t.Fatalf("NormalizeURL(%q) = %q, want input unchanged", raw, got)
			}
		}
	})
}

func TestIsProgramURL(t *testing.T) {
	base := "https://city.example.com"
	keywords := DefaultProgramKeywords

	cases := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"same host with keyword", "https://city.example.com/register/youth-soccer", true},
		{"www variant of same host", "https://www.city.example.com/programs", true},
		{"same host no keyword", "https://city.example.com/contact-us", false},
		{"cross host with keyword", "https://other.example.org/programs", false},
		{"unparseable candidate", "://broken", false},
		{"keyword match is case-insensitive on path", "https://city.example.com/REGISTER/Camp", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsProgramURL(tc.candidate, base, keywords); got != tc.want {
				t.Fatalf("IsProgramURL(%q) = %v, want %v", tc.candidate, got, tc.want)
			}
		})
	}

	t.Run("unparseable base rejects everything", func(t *testing.T) {
		if IsProgramURL("https://city.example.com/programs", "://broken", keywords) {
			t.Fatalf("expected rejection for unparseable base")
		}
	})
}
