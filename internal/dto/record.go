package dto

import "github.com/aretw0/ramal/pkg/domain"

// NodeRecord is the author-time shape of a node: a type tag plus an untyped
// config blob, as stored in relational rows and flow documents.
type NodeRecord struct {
	ID         string         `json:"id" yaml:"id" mapstructure:"id"`
	FlowID     string         `json:"flowId,omitempty" yaml:"flowId,omitempty" mapstructure:"flowId"`
	Type       string         `json:"type" yaml:"type" mapstructure:"type"`
	NextNodeID string         `json:"nextNodeId,omitempty" yaml:"nextNodeId,omitempty" mapstructure:"nextNodeId"`
	Config     map[string]any `json:"config,omitempty" yaml:"config,omitempty" mapstructure:"config"`
}

// FlowDocument is a whole flow in one YAML (or JSON) document.
type FlowDocument struct {
	domain.FlowDefinition `yaml:",inline"`
	Nodes                 []NodeRecord `yaml:"nodes"`
}

// NodeConfig is the decoded config blob of a node.
// Every node type reads the subset of keys it understands.
type NodeConfig struct {
	Message        string            `mapstructure:"message"`
	UseButtons     *bool             `mapstructure:"useButtons"`
	Buttons        []ChoiceConfig    `mapstructure:"buttons"`
	Options        []ChoiceConfig    `mapstructure:"options"`
	Conditions     []ConditionConfig `mapstructure:"conditions"`
	DefaultNodeID  string            `mapstructure:"defaultNodeId"`
	ElseNodeID     string            `mapstructure:"elseNodeId"`
	VariableName   string            `mapstructure:"variableName"`
	ResponseNodeID string            `mapstructure:"responseNodeId"`
	Handoff        bool              `mapstructure:"handoff"`
	HandoffReason  string            `mapstructure:"handoffReason"`
}

// ChoiceConfig is a button or menu option. A bare string decodes into
// a choice whose ID and label are the string itself.
type ChoiceConfig struct {
	ID           string `mapstructure:"id"`
	Label        string `mapstructure:"label"`
	Text         string `mapstructure:"text"`
	TargetNodeID string `mapstructure:"targetNodeId"`
}

// ConditionConfig is one ordered predicate of a condition node.
type ConditionConfig struct {
	Variable     string `mapstructure:"variable"`
	Operator     string `mapstructure:"operator"`
	Value        any    `mapstructure:"value"`
	TargetNodeID string `mapstructure:"targetNodeId"`
}
