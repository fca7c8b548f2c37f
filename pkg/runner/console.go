package runner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aretw0/ramal/pkg/domain"
)

// ContentRenderer transforms message text before it is written,
// e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)

// Console is an OutboundChannel and ChatLifecycle that prints to a writer.
// It stands in for WhatsApp and the agent queue when testing flows locally.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	renderer ContentRenderer
	prefix   bool
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithConsoleRenderer sets the renderer applied to text and menu prompts.
func WithConsoleRenderer(r ContentRenderer) ConsoleOption {
	return func(c *Console) { c.renderer = r }
}

// WithChatPrefix prefixes every line with the chat ID. Useful when several
// chats share one console.
func WithChatPrefix() ConsoleOption {
	return func(c *Console) { c.prefix = true }
}

// NewConsole creates a console writing to out.
func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{out: out}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send writes one effect. Menu options are listed with their ordinal so
// the user can answer with the number.
func (c *Console) Send(ctx context.Context, chatID string, effect domain.Effect) error {
	var b strings.Builder

	switch effect.Type {
	case domain.EffectSystem:
		fmt.Fprintf(&b, "* %s\n", effect.Text)
	default:
		text, err := c.render(effect.Text)
		if err != nil {
			return err
		}
		b.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			b.WriteByte('\n')
		}
		for i, opt := range effect.Options {
			fmt.Fprintf(&b, "  %d) %s\n", i+1, opt.Label)
		}
	}

	return c.write(chatID, b.String())
}

// AssignToQueue reports the handoff on the console.
func (c *Console) AssignToQueue(ctx context.Context, chatID string, reason string) error {
	return c.write(chatID, fmt.Sprintf("[handoff] chat assigned to agent queue (reason: %s)\n", reason))
}

func (c *Console) render(text string) (string, error) {
	if c.renderer == nil || text == "" {
		return text, nil
	}
	out, err := c.renderer(text)
	if err != nil {
		return "", fmt.Errorf("render message: %w", err)
	}
	return out, nil
}

func (c *Console) write(chatID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prefix {
		var b strings.Builder
		for _, line := range strings.SplitAfter(text, "\n") {
			if line == "" {
				continue
			}
			b.WriteString("[" + chatID + "] " + line)
		}
		text = b.String()
	}
	_, err := io.WriteString(c.out, text)
	return err
}
