package runner

import (
	"io"
	"log/slog"
)

// Option configures a Runner.
type Option func(*Runner)

// WithInput sets the line source. Defaults to an empty reader.
func WithInput(in io.Reader) Option {
	return func(r *Runner) { r.in = in }
}

// WithOutput sets where prompts and notices are written.
func WithOutput(out io.Writer) Option {
	return func(r *Runner) { r.out = out }
}

// WithChat sets the chat ID used for the conversation.
func WithChat(chatID string) Option {
	return func(r *Runner) { r.chatID = chatID }
}

// WithFlow sets the flow started by Run and "/reset".
func WithFlow(flowID string) Option {
	return func(r *Runner) { r.flowID = flowID }
}

// WithEntity binds the session to an entity (e.g. the debt record).
func WithEntity(entityID string) Option {
	return func(r *Runner) { r.entityID = entityID }
}

// WithPrompt sets the input prompt. An empty prompt disables it.
func WithPrompt(prompt string) Option {
	return func(r *Runner) { r.prompt = prompt }
}

// WithNoticeStyle decorates runner notices, e.g. with terminal colors.
func WithNoticeStyle(style func(string) string) Option {
	return func(r *Runner) { r.style = style }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}
