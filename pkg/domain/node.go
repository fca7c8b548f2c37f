package domain

// NodeKind identifies the behaviour of a node.
type NodeKind string

const (
	// KindMessage renders a template. With buttons it blocks for a reply.
	KindMessage NodeKind = "message"
	// KindMenu renders a finite set of options and always blocks.
	KindMenu NodeKind = "menu"
	// KindInput prompts for free text and stores it in a named variable.
	KindInput NodeKind = "input"
	// KindCondition branches on the variable bag without emitting output.
	KindCondition NodeKind = "condition"
)

// Node is one step of a flow.
// The set of implementations is closed: only this package can add kinds.
type Node interface {
	Base() *NodeBase
	Kind() NodeKind
	sealed()
}

// NodeBase holds the fields shared by every node kind.
type NodeBase struct {
	ID     string `json:"id" yaml:"id"`
	FlowID string `json:"flow_id" yaml:"flowId"`
	// Next is the unconditional successor, if any.
	Next string `json:"next_node_id,omitempty" yaml:"nextNodeId,omitempty"`
}

func (b *NodeBase) Base() *NodeBase { return b }

// Button is an interactive reply option attached to a message.
type Button struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// MessageNode sends a rendered template.
type MessageNode struct {
	NodeBase
	Template string   `json:"message" yaml:"message"`
	Buttons  []Button `json:"buttons,omitempty" yaml:"buttons,omitempty"`
	// ResponseNodeID routes the reply to a button-bearing message.
	// When empty the reply goes to Next.
	ResponseNodeID string `json:"response_node_id,omitempty" yaml:"responseNodeId,omitempty"`
	// Handoff transfers the chat to an agent right after the message is sent.
	Handoff       bool   `json:"handoff,omitempty" yaml:"handoff,omitempty"`
	HandoffReason string `json:"handoff_reason,omitempty" yaml:"handoffReason,omitempty"`
}

func (*MessageNode) Kind() NodeKind { return KindMessage }
func (*MessageNode) sealed()        {}

// Blocking reports whether the message waits for a reply.
func (n *MessageNode) Blocking() bool { return len(n.Buttons) > 0 }

// ReplyTarget returns the node that processes the reply to this message.
func (n *MessageNode) ReplyTarget() string {
	if n.ResponseNodeID != "" {
		return n.ResponseNodeID
	}
	return n.Next
}

// MenuOption is a labeled choice bound to a target node.
type MenuOption struct {
	ID     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Target string `json:"target_node_id" yaml:"targetNodeId"`
}

// MenuNode presents options and routes on the selected one.
type MenuNode struct {
	NodeBase
	Prompt  string       `json:"message" yaml:"message"`
	Options []MenuOption `json:"options" yaml:"options"`
}

func (*MenuNode) Kind() NodeKind { return KindMenu }
func (*MenuNode) sealed()        {}

// InputNode asks for free text and stores the reply.
type InputNode struct {
	NodeBase
	Prompt       string `json:"message" yaml:"message"`
	VariableName string `json:"variable_name,omitempty" yaml:"variableName,omitempty"`
}

func (*InputNode) Kind() NodeKind { return KindInput }
func (*InputNode) sealed()        {}

// Condition is one ordered predicate of a condition node.
type Condition struct {
	Variable string `json:"variable" yaml:"variable"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value" yaml:"value"`
	Target   string `json:"target_node_id" yaml:"targetNodeId"`
}

// ConditionNode picks the first matching predicate.
type ConditionNode struct {
	NodeBase
	Conditions    []Condition `json:"conditions" yaml:"conditions"`
	DefaultNodeID string      `json:"default_node_id,omitempty" yaml:"defaultNodeId,omitempty"`
}

func (*ConditionNode) Kind() NodeKind { return KindCondition }
func (*ConditionNode) sealed()        {}
