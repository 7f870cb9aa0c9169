package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/germanamz/newsroom/pkg/tools/toolbox"
)

// maxBodySize is the maximum response body read by web_fetch (5MB).
const maxBodySize = 5 << 20

type fetchInput struct {
	URL string `json:"url"`
}

func (w *WebSearch) fetchTool() toolbox.Tool {
	return toolbox.Tool{
		Name:        "web_fetch",
		Description: "Download a web page and return its main content as markdown. Use it to read sources found with web_search.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"url":{"type":"string","description":"The http or https URL to fetch"}},"required":["url"]}`),
		Handler:     w.handleFetch,
	}
}

func (w *WebSearch) handleFetch(ctx context.Context, input json.RawMessage) (string, error) {
	var in fetchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("web_fetch: invalid input: %w", err)
	}

	return w.Fetch(ctx, in.URL)
}

// Fetch downloads rawURL and returns its content as markdown, truncated to
// MaxChars. Non-HTML text bodies are returned as-is.
func (w *WebSearch) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("web_fetch: invalid url %q: must be http or https", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("web_fetch: create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req) //nolint:gosec // URL is restricted to http(s); the default transport blocks private addresses
	if err != nil {
		return "", fmt.Errorf("web_fetch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on read

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("web_fetch: unexpected status %d", resp.StatusCode)
	}

	ctype := resp.Header.Get("Content-Type")
	if !textual(ctype) {
		return "", fmt.Errorf("web_fetch: unsupported content type %q", ctype)
	}

	// Transcode legacy charsets (header, BOM or <meta>) to UTF-8.
	r, err := charset.NewReader(io.LimitReader(resp.Body, maxBodySize), ctype)
	if err != nil {
		return "", fmt.Errorf("web_fetch: decode body: %w", err)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("web_fetch: read body: %w", err)
	}

	text := string(body)
	if strings.Contains(ctype, "html") {
		text, err = toMarkdown(text)
		if err != nil {
			return "", fmt.Errorf("web_fetch: convert: %w", err)
		}
	}

	return truncate(text, w.maxChars), nil
}

// textual reports whether a Content-Type names a text format. An empty type is
// accepted and left to charset detection.
func textual(ctype string) bool {
	if ctype == "" {
		return true
	}

	mt, _, err := mime.ParseMediaType(ctype)
	if err != nil {
		mt, _, _ = strings.Cut(strings.ToLower(ctype), ";")
		mt = strings.TrimSpace(mt)
	}

	return strings.HasPrefix(mt, "text/") ||
		strings.Contains(mt, "html") ||
		strings.Contains(mt, "xml") ||
		strings.Contains(mt, "json")
}

// toMarkdown strips page chrome and converts the remaining body to markdown,
// prefixed with the page title when there is one.
func toMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, nav, header, footer, aside, form, iframe").Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	inner, err := goquery.OuterHtml(root)
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(inner)
	if err != nil {
		return "", err
	}

	markdown = strings.TrimSpace(markdown)
	if title != "" {
		markdown = "# " + title + "\n\n" + markdown
	}

	return markdown, nil
}

// truncate cuts s to at most n runes, marking the cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	r := []rune(s)

	return string(r[:n]) + fmt.Sprintf("\n\n[truncated to %d characters]", n)
}

// privateRanges are the CIDR blocks for private/loopback networks.
var privateRanges = func() []*net.IPNet {
	cidrs := []string{
		"127.0.0.0/8",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"::1/128",
		"fc00::/7",
		"fe80::/10",
	}

	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, ipNet, _ := net.ParseCIDR(cidr)
		nets = append(nets, ipNet)
	}

	return nets
}()

func isPrivateIP(ip net.IP) bool {
	for _, r := range privateRanges {
		if r.Contains(ip) {
			return true
		}
	}

	return false
}

// safeTransport validates resolved IPs at connection time so a page cannot
// point web_fetch at internal services, including through redirects.
func safeTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, fmt.Errorf("invalid address %s: %w", addr, err)
			}

			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("dns lookup failed for %s: %w", host, err)
			}

			if len(ips) == 0 {
				return nil, fmt.Errorf("no addresses for %s", host)
			}

			if slices.ContainsFunc(ips, func(ip net.IPAddr) bool { return isPrivateIP(ip.IP) }) {
				return nil, fmt.Errorf("connection to private address %s blocked", host)
			}

			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
		},
	}
}
