package domain

// EventKind distinguishes why the engine is being advanced.
type EventKind string

const (
	EventSessionStarted EventKind = "session_started"
	EventUserReply      EventKind = "user_reply"
)

// InboundEvent is the input of one engine advance.
type InboundEvent struct {
	Kind EventKind `json:"kind"`
	Text string    `json:"text,omitempty"`
}

// Started returns the event that kicks off a fresh session.
func Started() InboundEvent {
	return InboundEvent{Kind: EventSessionStarted}
}

// Reply wraps a user reply.
func Reply(text string) InboundEvent {
	return InboundEvent{Kind: EventUserReply, Text: text}
}
