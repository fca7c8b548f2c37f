package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/aretw0/ramal/pkg/runner"
)

// NewRenderer returns a runner.ContentRenderer that renders bot messages
// as markdown (WhatsApp's *bold* and _italic_ read fine as markdown).
// Without a usable renderer the text passes through unchanged.
func NewRenderer() runner.ContentRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return func(s string) (string, error) { return s, nil }
	}
	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return markdown, err
		}
		return strings.Trim(out, "\n"), nil
	}
}
