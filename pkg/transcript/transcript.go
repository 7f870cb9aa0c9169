// Package transcript renders a finished newsroom run as markdown and writes
// it to disk, optionally with a unified diff from the first draft to the
// final article.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/germanamz/newsroom/pkg/newsroom"
)

// Markdown renders the run: requirements, every turn in order with its
// search queries and cited sources, then the article.
func Markdown(res newsroom.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Newsroom run %s\n\n", res.RunID)
	if !res.StartedAt.IsZero() {
		fmt.Fprintf(&b, "Started: %s\n\n", res.StartedAt.Format("2006-01-02 15:04:05 MST"))
	}

	b.WriteString("## Requirements\n\n")
	b.WriteString(res.Requirements)
	b.WriteString("\n\n")

	for _, t := range res.Turns {
		heading := t.Title
		if res.Rounds > 1 {
			heading = fmt.Sprintf("%s (round %d)", t.Title, t.Round)
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)

		if len(t.Queries) > 0 {
			b.WriteString("Search queries:\n\n")
			for _, q := range t.Queries {
				fmt.Fprintf(&b, "- %s\n", q)
			}
			b.WriteString("\n")
		}

		b.WriteString(t.Text)
		b.WriteString("\n\n")

		if len(t.Sources) > 0 {
			b.WriteString("Sources:\n\n")
			for _, src := range t.Sources {
				if src.Title == "" {
					fmt.Fprintf(&b, "- <%s>\n", src.URL)
					continue
				}
				fmt.Fprintf(&b, "- [%s](%s)\n", src.Title, src.URL)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Outcome\n\n")
	fmt.Fprintf(&b, "- Approved: %s\n", yesNo(res.Approved))
	fmt.Fprintf(&b, "- Complete: %s\n", yesNo(res.Complete))
	fmt.Fprintf(&b, "- Rounds: %d\n", res.Rounds)

	if res.Article != "" {
		b.WriteString("\n## Article\n\n")
		b.WriteString(res.Article)
		b.WriteString("\n")
	}

	return b.String()
}

// Diff returns a unified diff between a and b. It is empty when they are
// equal.
func Diff(a, b, fromName, toName string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: fromName,
		ToFile:   toName,
		Context:  3,
	}

	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("transcript: diff: %w", err)
	}

	return out, nil
}

// Write saves the transcript under dir as <date>-<run id>.md, creating dir
// when missing. With withDiff and both a draft and an article, the draft to
// article diff is written next to it with a .diff extension. It returns the
// written paths.
func Write(dir string, res newsroom.Result, withDiff bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transcript: create %s: %w", dir, err)
	}

	base := filepath.Join(dir, baseName(res))

	mdPath := base + ".md"
	if err := os.WriteFile(mdPath, []byte(Markdown(res)), 0o644); err != nil {
		return nil, fmt.Errorf("transcript: write: %w", err)
	}

	paths := []string{mdPath}

	if !withDiff || res.Draft == "" || res.Article == "" {
		return paths, nil
	}

	diff, err := Diff(res.Draft, res.Article, "draft", "article")
	if err != nil {
		return paths, err
	}

	diffPath := base + ".diff"
	if err := os.WriteFile(diffPath, []byte(diff), 0o644); err != nil {
		return paths, fmt.Errorf("transcript: write: %w", err)
	}

	return append(paths, diffPath), nil
}

func baseName(res newsroom.Result) string {
	id := res.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	if res.StartedAt.IsZero() {
		return id
	}

	return res.StartedAt.Format(newsroom.DateLayout) + "-" + id
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}
