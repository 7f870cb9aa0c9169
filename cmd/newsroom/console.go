package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/germanamz/newsroom/pkg/newsroom"
)

const (
	defaultWidth = 100
	requestText  = "What article would you like me to write? Please describe the topic, key questions, and any starting points."
)

// console prints pipeline progress the way a person would read it: stage
// headers, raw streamed text and search queries as they are issued.
type console struct {
	out    io.Writer
	width  int
	pretty bool
	styles styles
	md     *glamour.TermRenderer
}

var _ newsroom.Observer = (*console)(nil)

// newConsole creates a console writing to out. pretty enables the rendered
// final article, which only makes sense on a terminal.
func newConsole(out io.Writer, pretty bool) *console {
	c := &console{
		out:    out,
		width:  defaultWidth,
		pretty: pretty,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}

	if pretty {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(c.width),
		)
		if err == nil {
			c.md = r
		}
	}

	return c
}

// Intro prints the banner and the request for requirements.
func (c *console) Intro() {
	fmt.Fprintf(c.out, "\n%s\n\n", c.styles.header.Render("Starting Article Creation Workflow"))
	fmt.Fprintf(c.out, "%s\n%s\n", c.styles.label.Render("User Input: "), requestText)
	fmt.Fprintf(c.out, "\n%s\n", c.styles.label.Render("Human Journalist:"))
}

// Echo shows requirements given on the command line as if typed.
func (c *console) Echo(requirements string) {
	fmt.Fprintf(c.out, ">> %s\n", requirements)
}

func (c *console) RoundStarted(round int) {
	if round > 1 {
		fmt.Fprintf(c.out, "\n%s\n", c.styles.header.Render(fmt.Sprintf("Revision round %d", round)))
	}
}

func (c *console) StageStarted(_ int, s newsroom.Stage) {
	fmt.Fprintf(c.out, "\n%s\n", c.styles.label.Render("🤖 "+s.Title+":"))
}

func (c *console) TextDelta(text string) {
	fmt.Fprint(c.out, text)
}

func (c *console) SearchQueries(queries []string) {
	line := "🔍 Search query: " + strings.Join(queries, ", ")
	fmt.Fprintf(c.out, "\n%s\n\n", c.styles.search.Render(c.fit(line)))
}

func (c *console) StageFinished(newsroom.Turn) {
	fmt.Fprintln(c.out)
}

// Finish prints the outcome, and on a terminal the rendered article.
func (c *console) Finish(res newsroom.Result) {
	if c.md != nil && res.Article != "" {
		if rendered, err := c.md.Render(res.Article); err == nil {
			fmt.Fprintf(c.out, "\n%s\n%s", c.styles.header.Render("Final article"), rendered)
		}
	}

	fmt.Fprintf(c.out, "\n%s\n", c.styles.dim.Render(fmt.Sprintf(
		"approved: %s  complete: %s  rounds: %d  run: %s",
		yesNo(res.Approved), yesNo(res.Complete), res.Rounds, res.RunID,
	)))
	fmt.Fprintf(c.out, "\n%s\n", c.styles.done.Render("Article creation process completed!"))
}

// Saved reports a written transcript file.
func (c *console) Saved(path string) {
	fmt.Fprintf(c.out, "%s %s\n", c.styles.dim.Render("saved"), path)
}

// fit truncates a single line to the console width in display cells.
func (c *console) fit(line string) string {
	line = strings.ReplaceAll(line, "\n", " ")
	return runewidth.Truncate(line, c.width, "…")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
