package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalFetchPageExtractsText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><head><style>body{color:red}</style></head>
<body><h1>Youth  Soccer</h1><script>var x = "ignored";</script><p>Register   today</p></body></html>`)
	}))
	t.Cleanup(srv.Close)

	local := NewLocal(LocalConfig{UserAgent: "reggie-test"})
	text, err := local.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "Youth Soccer Register today", text)
}

func TestExtractTextSeparatesBlockElements(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		html string
		want string
	}{
		{"adjacent blocks", "<h1>Youth Soccer</h1><p>Register today</p>", "Youth Soccer Register today"},
		{"nested list", "<ul><li>Swim</li><li>Tennis</li></ul>", "Swim Tennis"},
		{"inline span", "<p>Ages <span>5</span>-<span>7</span></p>", "Ages 5 - 7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractText([]byte(tc.html))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestLocalFetchPageError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	local := NewLocal(LocalConfig{})
	_, err := local.FetchPage(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestLocalMapSiteCollectsLinks(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
<a href="/programs">Programs</a>
<a href="/register">Register</a>
<a href="/programs">Programs again</a>
</body></html>`)
	})
	mux.HandleFunc("/programs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><a href="/programs/swim">Swim</a></body></html>`)
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>register here</body></html>`)
	})
	mux.HandleFunc("/programs/swim", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>swim</body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	local := NewLocal(LocalConfig{MapLimit: 10})
	links, err := local.MapSite(context.Background(), srv.URL)
	require.NoError(t, err)

	require.Contains(t, links, srv.URL+"/programs")
	require.Contains(t, links, srv.URL+"/register")

	// Links found while visiting a linked page are collected too; the
	// collector must keep walking instead of blocking on re-entry.
	require.Contains(t, links, srv.URL+"/programs/swim")

	// Dedup: /programs appears once despite two anchors.
	count := 0
	for _, l := range links {
		if strings.HasSuffix(l, "/programs") {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestLocalMapSiteInvalidBase(t *testing.T) {
	t.Parallel()

	local := NewLocal(LocalConfig{})
	_, err := local.MapSite(context.Background(), "not a url")
	require.Error(t, err)
}

func TestLocalSearchUnsupported(t *testing.T) {
	t.Parallel()

	local := NewLocal(LocalConfig{})
	_, err := local.Search(context.Background(), "anytown rec", 5)
	require.True(t, errors.Is(err, ErrSearchUnsupported))
}

func TestLooksJSGated(t *testing.T) {
	t.Parallel()

	big := strings.Repeat("<p>real content here</p>", 100)
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"empty body", "", false},
		{"tiny shell", "<html><div id=root></div></html>", true},
		{"enable javascript marker", big + "You need to Enable JavaScript to run this app.", true},
		{"plain content", big, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, looksJSGated([]byte(tc.body)))
		})
	}
}
