package websearch

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/germanamz/newsroom/pkg/chats/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<div class="result results_links result--ad">
  <h2 class="result__title"><a class="result__a" href="https://ads.example.com">Sponsored</a></h2>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.noaa.gov%2Freefs&amp;rut=abc">Coral reefs   NOAA</a></h2>
  <a class="result__snippet" href="#">Mass   bleaching
  confirmed in 2025.</a>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="https://example.org/heat">Ocean heat</a></h2>
  <a class="result__snippet">Record temperatures.</a>
</div>
<div class="result results_links">
  <h2 class="result__title"><a class="result__a" href="https://example.org/third">Third</a></h2>
</div>
</body></html>`

// newTestSearch returns a WebSearch pointed at srv with no rate limit.
func newTestSearch(srv *httptest.Server, opts Options) *WebSearch {
	opts.Endpoint = srv.URL + "/html/"
	opts.Client = srv.Client()

	w := New(opts)
	w.limit = &limiter{}

	return w
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/html/", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "coral bleaching", r.PostForm.Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(resultsPage))
	}))
	t.Cleanup(srv.Close)

	ws := newTestSearch(srv, Options{MaxResults: 2})

	results, err := ws.Search(context.Background(), "  coral bleaching ")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, Result{
		Title:   "Coral reefs   NOAA",
		URL:     "https://www.noaa.gov/reefs",
		Snippet: "Mass bleaching confirmed in 2025.",
	}, results[0])
	assert.Equal(t, "https://example.org/heat", results[1].URL)
}

func TestSearch_EmptyQuery(t *testing.T) {
	ws := New(Options{})

	_, err := ws.Search(context.Background(), "   ")
	assert.EqualError(t, err, "web_search: query is required")
}

func TestSearch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestSearch(srv, Options{}).Search(context.Background(), "x")
	assert.EqualError(t, err, "web_search: unexpected status 403")
}

func TestSearchTool_ViaToolBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(resultsPage))
	}))
	t.Cleanup(srv.Close)

	tb := newTestSearch(srv, Options{}).Tools()

	result := tb.Call(context.Background(), content.ToolCall{ID: "c1", Name: "web_search", Arguments: `{"query":"reefs"}`})
	require.False(t, result.IsError, result.Content)

	var got []Result
	require.NoError(t, json.Unmarshal([]byte(result.Content), &got))
	assert.Len(t, got, 3)
}

func TestSearchTool_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>nothing</p></body></html>`))
	}))
	t.Cleanup(srv.Close)

	out, err := newTestSearch(srv, Options{}).handleSearch(context.Background(), json.RawMessage(`{"query":"zzz"}`))
	require.NoError(t, err)
	assert.Equal(t, "No results found.", out)
}

func TestFetch_HTMLToMarkdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Reef Report</title><script>var x = 1;</script></head>
<body><nav>Home | About</nav><article><h2>Findings</h2><p>Bleaching hit <strong>84%</strong> of reefs.</p></article><footer>(c) NOAA</footer></body></html>`))
	}))
	t.Cleanup(srv.Close)

	ws := newTestSearch(srv, Options{})

	out, err := ws.Fetch(context.Background(), srv.URL+"/report")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# Reef Report\n\n"), out)
	assert.Contains(t, out, "## Findings")
	assert.Contains(t, out, "**84%**")
	assert.NotContains(t, out, "Home | About")
	assert.NotContains(t, out, "var x")
	assert.NotContains(t, out, "(c) NOAA")
}

func TestFetch_PlainTextTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("abcdefghij"))
	}))
	t.Cleanup(srv.Close)

	out, err := newTestSearch(srv, Options{MaxChars: 4}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "abcd\n\n[truncated to 4 characters]", out)
}

func TestFetch_TranscodesLegacyCharsets(t *testing.T) {
	tests := []struct {
		name  string
		ctype string
		body  string
		want  string
	}{
		{
			name:  "charset in header",
			ctype: "text/html; charset=iso-8859-1",
			body:  "<html><body><p>Caf\xe9 on the quay</p></body></html>",
			want:  "Café on the quay",
		},
		{
			name:  "charset in meta",
			ctype: "text/html",
			body:  `<html><head><meta charset="windows-1252"></head><body><p>The mayor said ` + "\x93yes\x94" + `.</p></body></html>`,
			want:  "The mayor said “yes”.",
		},
		{
			name:  "plain text",
			ctype: "text/plain; charset=iso-8859-1",
			body:  "Se\xf1ora",
			want:  "Señora",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.ctype)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			out, err := newTestSearch(srv, Options{}).Fetch(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestFetch_BinaryContentRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	t.Cleanup(srv.Close)

	_, err := newTestSearch(srv, Options{}).Fetch(context.Background(), srv.URL)
	assert.EqualError(t, err, `web_fetch: unsupported content type "image/png"`)
}

func TestTextual(t *testing.T) {
	for _, ct := range []string{"", "text/html; charset=utf-8", "application/xhtml+xml", "application/json", "TEXT/PLAIN"} {
		assert.True(t, textual(ct), ct)
	}
	for _, ct := range []string{"image/png", "application/pdf", "application/octet-stream"} {
		assert.False(t, textual(ct), ct)
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	ws := New(Options{})

	for _, u := range []string{"", "ftp://example.com", "not a url", "https://"} {
		_, err := ws.Fetch(context.Background(), u)
		assert.Error(t, err, u)
	}
}

func TestFetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestSearch(srv, Options{}).Fetch(context.Background(), srv.URL)
	assert.EqualError(t, err, "web_fetch: unexpected status 404")
}

func TestFetch_DefaultClientBlocksLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("secret"))
	}))
	t.Cleanup(srv.Close)

	_, err := New(Options{}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private address")
}

func TestResolveRedirect(t *testing.T) {
	assert.Equal(t, "https://a.example/x?y=1", resolveRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fa.example%2Fx%3Fy%3D1"))
	assert.Equal(t, "https://plain.example", resolveRedirect("https://plain.example"))
}

func TestLimiter(t *testing.T) {
	l := &limiter{interval: 50 * time.Millisecond}

	require.NoError(t, l.wait(context.Background()))

	start := time.Now()
	require.NoError(t, l.wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.wait(ctx), context.Canceled)
}

func TestIsPrivateIP(t *testing.T) {
	assert.True(t, isPrivateIP(net.ParseIP("127.0.0.1")))
	assert.True(t, isPrivateIP(net.ParseIP("192.168.1.10")))
	assert.False(t, isPrivateIP(net.ParseIP("93.184.216.34")))
}
