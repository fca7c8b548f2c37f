package domain

// FlowStatus is the publication state of a flow.
type FlowStatus string

const (
	FlowDraft    FlowStatus = "draft"
	FlowActive   FlowStatus = "active"
	FlowArchived FlowStatus = "archived"
)

// Valid reports whether s is a known status.
func (s FlowStatus) Valid() bool {
	switch s {
	case FlowDraft, FlowActive, FlowArchived:
		return true
	}
	return false
}

// FlowDefinition describes a conversation script.
// Nodes are stored separately and keyed by the flow ID.
type FlowDefinition struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Status      FlowStatus `json:"status" yaml:"status"`
	StartNodeID string     `json:"start_node_id" yaml:"startNodeId"`
	// Version increases every time the flow is republished.
	Version int `json:"version,omitempty" yaml:"version,omitempty"`
}
