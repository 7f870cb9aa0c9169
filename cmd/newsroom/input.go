package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"
)

var errNoRequirements = errors.New("no article requirements given")

// readRequirements asks for the article requirements. On a terminal it shows
// a multi-line form; otherwise it reads one line from in.
func readRequirements(in io.Reader, out io.Writer, interactive bool) (string, error) {
	if interactive {
		return promptRequirements()
	}

	fmt.Fprint(out, ">> ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read requirements: %w", err)
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return "", errNoRequirements
	}

	return line, nil
}

func promptRequirements() (string, error) {
	var text string

	form := huh.NewForm(huh.NewGroup(
		huh.NewText().
			Title(">>").
			Description("Topic, key questions and starting points. Alt+Enter for a new line.").
			CharLimit(4000).
			Value(&text).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errNoRequirements
				}
				return nil
			}),
	))

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", errNoRequirements
		}
		return "", fmt.Errorf("read requirements: %w", err)
	}

	return strings.TrimSpace(text), nil
}
