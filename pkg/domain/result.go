package domain

// Signal is the terminal outcome of one engine advance.
type Signal string

const (
	SignalContinue   Signal = "continue"    // Flow moved forward and needs nothing from the user
	SignalAwaitInput Signal = "await_input" // Blocked on a node waiting for a reply
	SignalHandoff    Signal = "handoff"     // Flow asked for a human agent
	SignalError      Signal = "error"       // Engine failed; caller must fail safe
)

// TransitionResult is what one call to the engine produces.
type TransitionResult struct {
	Effects []Effect `json:"effects"`
	Session *Session `json:"session"`
	Signal  Signal   `json:"signal"`

	// Reason carries the handoff reason when Signal is SignalHandoff.
	Reason string `json:"reason,omitempty"`

	// Err is set when Signal is SignalError.
	Err error `json:"-"`

	// Steps counts the node steps executed.
	Steps int `json:"steps"`
}
