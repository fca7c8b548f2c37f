package domain

import (
	"reflect"
)

// SessionDiff represents the changes between two snapshots of a session.
// It is serialized to JSON for partial updates on SSE clients.
type SessionDiff struct {
	// ChatID is always present to identify the target.
	ChatID string `json:"chat_id"`

	CurrentNodeID *string        `json:"current_node_id,omitempty"`
	Status        *SessionStatus `json:"status,omitempty"`
	AwaitingInput *bool          `json:"awaiting_input,omitempty"`

	// Variables contains only changed, added or deleted keys.
	// Deleted keys are present with a nil value.
	Variables map[string]any `json:"variables,omitempty"`

	// Visited contains node IDs appended to the history.
	Visited []string `json:"visited,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// A nil oldSession yields a diff carrying the whole newSession.
// It returns nil when nothing changed.
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{ChatID: newSession.ChatID}

	if oldSession == nil || oldSession.CurrentNodeID != newSession.CurrentNodeID {
		diff.CurrentNodeID = &newSession.CurrentNodeID
	}
	if oldSession == nil || oldSession.Status != newSession.Status {
		diff.Status = &newSession.Status
	}
	if oldSession == nil || oldSession.AwaitingInput != newSession.AwaitingInput {
		diff.AwaitingInput = &newSession.AwaitingInput
	}

	diff.Variables = diffVariables(oldSession, newSession)
	diff.Visited = diffHistory(oldSession, newSession)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffVariables(prev, next *Session) map[string]any {
	delta := make(map[string]any)

	if prev == nil {
		for k, v := range next.Variables {
			delta[k] = v
		}
	} else {
		for k, v := range next.Variables {
			if old, ok := prev.Variables[k]; !ok || !reflect.DeepEqual(old, v) {
				delta[k] = v
			}
		}
		for k := range prev.Variables {
			if _, ok := next.Variables[k]; !ok {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes history is append-only.
func diffHistory(prev, next *Session) []string {
	if len(next.History) == 0 {
		return nil
	}
	if prev == nil {
		return next.History
	}
	if len(next.History) > len(prev.History) {
		return next.History[len(prev.History):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil &&
		d.Status == nil &&
		d.AwaitingInput == nil &&
		len(d.Variables) == 0 &&
		len(d.Visited) == 0
}
