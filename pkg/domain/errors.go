package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a chat has no bot session.
var ErrSessionNotFound = errors.New("session not found")

// ErrFlowNotFound is returned when a flow ID cannot be found in the graph store.
var ErrFlowNotFound = errors.New("flow not found")

// ErrFlowNotActive is returned when a new session is requested on a flow that is not active.
var ErrFlowNotActive = errors.New("flow is not active")

// BrokenGraphError reports a node reference that does not resolve within its flow.
type BrokenGraphError struct {
	FlowID string
	// NodeID is the node holding the reference. Empty when the reference
	// comes from the flow (start node) or the session cursor.
	NodeID string
	Ref    string
	Edge   EdgeKind
}

func (e *BrokenGraphError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("flow '%s': %s references unknown node '%s'", e.FlowID, e.Edge, e.Ref)
	}
	return fmt.Sprintf("flow '%s': node '%s' %s references unknown node '%s'", e.FlowID, e.NodeID, e.Edge, e.Ref)
}

// StepCapExceededError is returned when a single advance executes too many node steps.
// It almost always means the graph has a cycle without a blocking node.
type StepCapExceededError struct {
	Limit int
	Trail []string
}

func (e *StepCapExceededError) Error() string {
	return fmt.Sprintf("step cap of %d exceeded (trail: %s)", e.Limit, strings.Join(e.Trail, " -> "))
}

// MissingDefaultBranchError is returned when no predicate of a condition node
// matched and the node declares no default branch.
type MissingDefaultBranchError struct {
	NodeID string
}

func (e *MissingDefaultBranchError) Error() string {
	return fmt.Sprintf("condition node '%s' matched no predicate and has no default branch", e.NodeID)
}

// GraphError aggregates the configuration problems found while compiling a flow.
type GraphError struct {
	FlowID   string
	Problems []error
}

func (e *GraphError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0].Error()
	}
	msg := fmt.Sprintf("flow '%s' has %d configuration errors:\n", e.FlowID, len(e.Problems))
	for i, err := range e.Problems {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *GraphError) Unwrap() []error {
	return e.Problems
}

// ErrorKind returns a short, stable label for an engine error, suitable for
// metric labels and handoff reasons.
func ErrorKind(err error) string {
	var broken *BrokenGraphError
	var stepCap *StepCapExceededError
	var missing *MissingDefaultBranchError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &broken):
		return "broken_graph"
	case errors.As(err, &stepCap):
		return "step_cap_exceeded"
	case errors.As(err, &missing):
		return "missing_default_branch"
	default:
		return "internal"
	}
}

// ErrSessionClosed is returned when advancing a session that was handed off or completed.
var ErrSessionClosed = errors.New("session is closed")
