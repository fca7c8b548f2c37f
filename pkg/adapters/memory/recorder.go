package memory

import (
	"context"
	"sync"

	"github.com/aretw0/ramal/pkg/domain"
)

// Sent is an effect delivered to a chat.
type Sent struct {
	ChatID string
	Effect domain.Effect
}

// Assignment is a handoff received by the lifecycle sink.
type Assignment struct {
	ChatID string
	Reason string
}

// Recorder implements ports.OutboundChannel and ports.ChatLifecycle by
// remembering every call. Safe for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	sent        []Sent
	assignments []Assignment
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send records an outbound effect.
func (r *Recorder) Send(ctx context.Context, chatID string, effect domain.Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{ChatID: chatID, Effect: effect})
	return nil
}

// AssignToQueue records a handoff.
func (r *Recorder) AssignToQueue(ctx context.Context, chatID string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = append(r.assignments, Assignment{ChatID: chatID, Reason: reason})
	return nil
}

// Sent returns the effects sent to chatID, or to every chat when chatID is empty.
func (r *Recorder) Sent(chatID string) []domain.Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Effect
	for _, s := range r.sent {
		if chatID == "" || s.ChatID == chatID {
			out = append(out, s.Effect)
		}
	}
	return out
}

// Assignments returns the recorded handoffs.
func (r *Recorder) Assignments() []Assignment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Assignment, len(r.assignments))
	copy(out, r.assignments)
	return out
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
	r.assignments = nil
}
