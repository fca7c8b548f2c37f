package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/ramal/internal/logging"
	"github.com/aretw0/ramal/pkg/domain"
)

// Event types pushed to SSE subscribers.
const (
	EventEffect  = "effect"
	EventHandoff = "handoff"
)

// Event is one message of a chat's outbound stream.
type Event struct {
	Type   string         `json:"type"`
	ChatID string         `json:"chat_id"`
	Effect *domain.Effect `json:"effect,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// StreamManager fans a chat's outbound effects and handoffs out to SSE
// subscribers. It implements ports.OutboundChannel and ports.ChatLifecycle
// so a bot can deliver straight into the stream.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- Event]struct{} // ChatID -> set of channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager. A nil logger discards logs.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for a chat. The returned func unsubscribes
// and closes the channel.
func (sm *StreamManager) Subscribe(chatID string) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, 16)
	if _, ok := sm.subscribers[chatID]; !ok {
		sm.subscribers[chatID] = make(map[chan<- Event]struct{})
	}
	sm.subscribers[chatID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[chatID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(sm.subscribers, chatID)
				}
			}
			close(ch)
		})
	}
}

// Subscribers returns how many listeners a chat has.
func (sm *StreamManager) Subscribers(chatID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[chatID])
}

// Broadcast pushes an event to every listener of its chat. Slow listeners
// lose the event rather than block the bot.
func (sm *StreamManager) Broadcast(ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[ev.ChatID] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: client buffer full, dropping event", "chat_id", ev.ChatID, "type", ev.Type)
		}
	}
}

// Send implements ports.OutboundChannel.
func (sm *StreamManager) Send(ctx context.Context, chatID string, effect domain.Effect) error {
	sm.Broadcast(Event{Type: EventEffect, ChatID: chatID, Effect: &effect})
	return nil
}

// AssignToQueue implements ports.ChatLifecycle by announcing the handoff to
// the chat's listeners; the CRM consuming the stream does the assignment.
func (sm *StreamManager) AssignToQueue(ctx context.Context, chatID string, reason string) error {
	sm.Broadcast(Event{Type: EventHandoff, ChatID: chatID, Reason: reason})
	return nil
}

func (ev Event) encode() (string, error) {
	data, err := json.Marshal(ev)
	return string(data), err
}
