package domain

import (
	"maps"
	"time"
)

// UserResponseKey is the variable every reply to a blocking node is written to.
// Condition nodes conventionally read it.
const UserResponseKey = "user_response"

// SessionStatus describes where a session is in its lifecycle.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"     // Bot controls the chat
	SessionHandedOff SessionStatus = "handed_off" // Chat was assigned to a human queue
	SessionCompleted SessionStatus = "completed"  // Flow reached a terminal node
)

// Session is the live cursor and variable bag of one chat's traversal of a flow.
type Session struct {
	ChatID        string `json:"chat_id"`
	FlowID        string `json:"flow_id"`
	EntityID      string `json:"entity_id,omitempty"`
	CurrentNodeID string `json:"current_node_id"`

	// Variables holds scalar values bound from replies.
	Variables map[string]any `json:"variables"`

	// AwaitingInput is true while the engine is blocked on CurrentNodeID.
	AwaitingInput bool `json:"awaiting_input"`

	// ReplyNodeID is where the next reply is routed once a blocking message is answered.
	ReplyNodeID string `json:"reply_node_id,omitempty"`

	Status   SessionStatus `json:"status"`
	BotTurns int           `json:"bot_turns"`
	History  []string      `json:"history,omitempty"`

	StartedAt      time.Time `json:"started_at"`
	LastAdvancedAt time.Time `json:"last_advanced_at"`
}

// NewSession creates a fresh session positioned at the flow's start node.
func NewSession(chatID string, flow FlowDefinition, entityID string, now time.Time) *Session {
	return &Session{
		ChatID:         chatID,
		FlowID:         flow.ID,
		EntityID:       entityID,
		CurrentNodeID:  flow.StartNodeID,
		Variables:      make(map[string]any),
		Status:         SessionActive,
		StartedAt:      now,
		LastAdvancedAt: now,
	}
}

// Clone returns a deep copy of the session. Variable values are scalars
// and are copied by value.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Variables = maps.Clone(s.Variables)
	if c.Variables == nil {
		c.Variables = make(map[string]any)
	}
	if s.History != nil {
		c.History = append([]string(nil), s.History...)
	}
	return &c
}

// Closed reports whether the session must no longer be persisted.
func (s *Session) Closed() bool {
	return s.Status == SessionHandedOff || s.Status == SessionCompleted
}
