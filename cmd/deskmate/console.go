package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	ruleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))
)

// Console is the terminal implementation of the session's interactive
// surface. Answers render as markdown when a renderer is available.
type Console struct {
	in       *bufio.Reader
	out      io.Writer
	renderer *glamour.TermRenderer
}

// NewConsole builds a console over stdin/stdout.
func NewConsole() *Console {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		renderer = nil
	}
	return &Console{
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		renderer: renderer,
	}
}

// Ask prints the prompt and reads one line.
func (c *Console) Ask(prompt string) (string, error) {
	fmt.Fprint(c.out, promptStyle.Render(prompt))
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("input closed: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Show prints a plain notice.
func (c *Console) Show(text string) {
	fmt.Fprintln(c.out, text)
}

// Present renders a titled answer block.
func (c *Console) Present(title, body string) {
	rule := ruleStyle.Render(strings.Repeat("=", 60))
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintln(c.out, titleStyle.Render(title))
	fmt.Fprintln(c.out, rule)

	rendered := body
	if c.renderer != nil {
		if out, err := c.renderer.Render(body); err == nil {
			rendered = strings.TrimRight(out, "\n")
		}
	}
	fmt.Fprintln(c.out, rendered)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintln(c.out)
}
