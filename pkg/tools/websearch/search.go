package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/germanamz/newsroom/pkg/tools/toolbox"
)

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type searchInput struct {
	Query string `json:"query"`
}

func (w *WebSearch) searchTool() toolbox.Tool {
	return toolbox.Tool{
		Name:        "web_search",
		Description: "Search the web for current information. Returns an array of {title, url, snippet}. Use web_fetch to read a result in full.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search query"}},"required":["query"]}`),
		Handler:     w.handleSearch,
	}
}

func (w *WebSearch) handleSearch(ctx context.Context, input json.RawMessage) (string, error) {
	var in searchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("web_search: invalid input: %w", err)
	}

	results, err := w.Search(ctx, in.Query)
	if err != nil {
		return "", err
	}

	if len(results) == 0 {
		return "No results found.", nil
	}

	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("web_search: marshal: %w", err)
	}

	return string(data), nil
}

// Search runs query against DuckDuckGo and returns at most MaxResults hits.
func (w *WebSearch) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("web_search: query is required")
	}

	if err := w.limit.wait(ctx); err != nil {
		return nil, fmt.Errorf("web_search: %w", err)
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("web_search: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", w.userAgent)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web_search: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on read

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web_search: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("web_search: parse results: %w", err)
	}

	return w.parseResults(doc), nil
}

func (w *WebSearch) parseResults(doc *goquery.Document) []Result {
	var results []Result

	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}

		a := s.Find(".result__title a, .result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return true
		}

		r := Result{
			Title:   strings.TrimSpace(a.Text()),
			URL:     resolveRedirect(href),
			Snippet: strings.Join(strings.Fields(s.Find(".result__snippet").First().Text()), " "),
		}
		if r.Title == "" || r.URL == "" {
			return true
		}

		results = append(results, r)

		return len(results) < w.maxResults
	})

	return results
}

// resolveRedirect unwraps DuckDuckGo's "/l/?uddg=<target>" redirect links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return href
	}

	if target := u.Query().Get("uddg"); target != "" {
		return target
	}

	return href
}
