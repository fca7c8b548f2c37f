package runner_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/runner"
)

type fakeConversation struct {
	starts   int
	messages []string
	status   domain.SessionStatus
	closed   bool
	err      error
}

func (f *fakeConversation) Start(ctx context.Context, chatID, flowID, entityID string) (*domain.TransitionResult, error) {
	f.starts++
	f.closed = false
	s := domain.NewSession(chatID, domain.FlowDefinition{ID: flowID, StartNodeID: "start"}, entityID, time.Unix(0, 0))
	return &domain.TransitionResult{Session: s, Signal: domain.SignalAwaitInput}, nil
}

func (f *fakeConversation) HandleMessage(ctx context.Context, chatID, text string) (*domain.TransitionResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.closed {
		return nil, domain.ErrSessionNotFound
	}
	f.messages = append(f.messages, text)
	s := &domain.Session{ChatID: chatID, Status: f.status}
	if f.status == "" {
		s.Status = domain.SessionActive
	}
	if s.Closed() {
		f.closed = true
	}
	return &domain.TransitionResult{Session: s}, nil
}

func (f *fakeConversation) Session(ctx context.Context, chatID string) (*domain.Session, error) {
	if f.closed {
		return nil, domain.ErrSessionNotFound
	}
	return &domain.Session{ChatID: chatID, FlowID: "f", Status: domain.SessionActive}, nil
}

func run(t *testing.T, conv runner.Conversation, input string) string {
	t.Helper()
	var out bytes.Buffer
	r := runner.NewRunner(conv,
		runner.WithFlow("f"),
		runner.WithChat("c1"),
		runner.WithInput(strings.NewReader(input)),
		runner.WithOutput(&out),
		runner.WithPrompt(""),
	)
	require.NoError(t, r.Run(context.Background()))
	return out.String()
}

func TestRunner_ForwardsLinesUntilExit(t *testing.T) {
	conv := &fakeConversation{}
	run(t, conv, "ACEPTO\n\n  1 \nexit\nnever\n")

	assert.Equal(t, 1, conv.starts)
	assert.Equal(t, []string{"ACEPTO", "1"}, conv.messages)
}

func TestRunner_EOFEndsCleanly(t *testing.T) {
	conv := &fakeConversation{}
	run(t, conv, "hola")
	assert.Equal(t, []string{"hola"}, conv.messages)
}

func TestRunner_Commands(t *testing.T) {
	conv := &fakeConversation{}
	out := run(t, conv, "/session\n/reset\nquit\n")

	assert.Equal(t, 2, conv.starts)
	assert.Contains(t, out, `"chat_id": "c1"`)
	assert.Empty(t, conv.messages)
}

func TestRunner_HandoffThenNoSession(t *testing.T) {
	conv := &fakeConversation{status: domain.SessionHandedOff}
	out := run(t, conv, "agente\nhola\n/reset\n")

	assert.Contains(t, out, "chat handed off")
	assert.Contains(t, out, "it is with agents")
	assert.Equal(t, 2, conv.starts)
}

func TestRunner_RejectedInputContinues(t *testing.T) {
	conv := &fakeConversation{err: runner.ErrInputTooLarge}
	out := run(t, conv, "x\n")
	assert.Contains(t, out, "input rejected")
}

func TestRunner_FatalError(t *testing.T) {
	boom := errors.New("store down")
	conv := &fakeConversation{err: boom}
	r := runner.NewRunner(conv, runner.WithFlow("f"), runner.WithInput(strings.NewReader("x\n")))
	assert.ErrorIs(t, r.Run(context.Background()), boom)
}

func TestRunner_RequiresFlow(t *testing.T) {
	r := runner.NewRunner(&fakeConversation{})
	assert.Error(t, r.Run(context.Background()))
}

func TestRunner_ContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	r := runner.NewRunner(&fakeConversation{}, runner.WithFlow("f"), runner.WithInput(pr))

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}

func TestRunner_NoticeStyle(t *testing.T) {
	var out bytes.Buffer
	conv := &fakeConversation{status: domain.SessionHandedOff}
	r := runner.NewRunner(conv,
		runner.WithFlow("f"),
		runner.WithInput(strings.NewReader("hola\n")),
		runner.WithOutput(&out),
		runner.WithPrompt(""),
		runner.WithNoticeStyle(strings.ToUpper),
	)
	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, out.String(), "-- CHAT HANDED OFF")
}
