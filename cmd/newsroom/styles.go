package main

import "github.com/charmbracelet/lipgloss"

// styles holds the console styles, bound to the renderer of one writer so
// color is only emitted on terminals.
type styles struct {
	header lipgloss.Style
	label  lipgloss.Style
	search lipgloss.Style
	done   lipgloss.Style
	dim    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")), // cyan
		label:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("5")), // magenta
		search: r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")), // yellow
		done:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")), // green
		dim:    r.NewStyle().Foreground(lipgloss.Color("8")),            // gray
	}
}
