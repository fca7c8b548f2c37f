package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/pkg/domain"
)

// Conversation is the bot surface the REPL drives. ramal.Bot satisfies it.
type Conversation interface {
	Start(ctx context.Context, chatID, flowID, entityID string) (*domain.TransitionResult, error)
	HandleMessage(ctx context.Context, chatID, text string) (*domain.TransitionResult, error)
	Session(ctx context.Context, chatID string) (*domain.Session, error)
}

// Runner is an interactive loop that feeds lines from an input stream into
// a single chat. Effects are delivered by the Conversation's own channel,
// so the runner only reports session state changes.
type Runner struct {
	conv     Conversation
	in       io.Reader
	out      io.Writer
	chatID   string
	flowID   string
	entityID string
	prompt   string
	style    func(string) string
	logger   *slog.Logger
}

// NewRunner creates a runner for conv.
func NewRunner(conv Conversation, opts ...Option) *Runner {
	r := &Runner{
		conv:   conv,
		in:     strings.NewReader(""),
		out:    io.Discard,
		chatID: "console",
		prompt: "> ",
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the flow and processes input until EOF, "exit"/"quit" or
// context cancellation. Lines starting with "/" are runner commands:
// "/reset" restarts the flow and "/session" prints the session as JSON.
func (r *Runner) Run(ctx context.Context) error {
	if r.flowID == "" {
		return errors.New("runner: flow ID is required")
	}
	if err := r.start(ctx); err != nil {
		return err
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		r.printPrompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			done, err := r.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func (r *Runner) handle(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(line) {
	case "":
		return false, nil
	case "exit", "quit":
		return true, nil
	case "/reset":
		return false, r.start(ctx)
	case "/session":
		return false, r.printSession(ctx)
	}

	res, err := r.conv.HandleMessage(ctx, r.chatID, line)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		r.notice("no bot session for this chat; it is with agents (/reset to restart)")
		return false, nil
	case errors.Is(err, ErrInputTooLarge), errors.Is(err, ErrInvalidUTF8):
		r.notice("input rejected: " + err.Error())
		return false, nil
	case err != nil && res == nil:
		return false, err
	}
	r.report(res)
	return false, nil
}

func (r *Runner) start(ctx context.Context) error {
	res, err := r.conv.Start(ctx, r.chatID, r.flowID, r.entityID)
	if err != nil && res == nil {
		return fmt.Errorf("start flow %q: %w", r.flowID, err)
	}
	r.logger.Debug("session started", "chat_id", r.chatID, "flow_id", r.flowID)
	r.report(res)
	return nil
}

func (r *Runner) report(res *domain.TransitionResult) {
	if res == nil || res.Session == nil {
		return
	}
	switch res.Session.Status {
	case domain.SessionCompleted:
		r.notice("flow completed (/reset to restart)")
	case domain.SessionHandedOff:
		r.notice("chat handed off (/reset to return to bot)")
	}
}

func (r *Runner) printSession(ctx context.Context) error {
	s, err := r.conv.Session(ctx, r.chatID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		r.notice("no bot session")
		return nil
	}
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, string(data))
	return nil
}

func (r *Runner) notice(msg string) {
	line := "-- " + msg
	if r.style != nil {
		line = r.style(line)
	}
	fmt.Fprintln(r.out, line)
}

func (r *Runner) printPrompt() {
	if r.prompt != "" {
		fmt.Fprint(r.out, r.prompt)
	}
}
