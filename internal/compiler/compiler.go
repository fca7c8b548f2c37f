// Package compiler turns author-time node records into typed domain nodes
// and back.
package compiler

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/aretw0/ramal/internal/dto"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Compile decodes a record into the node variant named by its type.
func Compile(rec dto.NodeRecord) (domain.Node, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("node missing ID")
	}

	var cfg dto.NodeConfig
	if err := decodeConfig(rec.Config, &cfg); err != nil {
		return nil, fmt.Errorf("node %s: invalid config: %w", rec.ID, err)
	}

	base := domain.NodeBase{ID: rec.ID, FlowID: rec.FlowID, Next: rec.NextNodeID}

	switch domain.NodeKind(rec.Type) {
	case domain.KindMessage:
		n := &domain.MessageNode{
			NodeBase:       base,
			Template:       cfg.Message,
			ResponseNodeID: cfg.ResponseNodeID,
			Handoff:        cfg.Handoff,
			HandoffReason:  cfg.HandoffReason,
		}
		if cfg.UseButtons == nil || *cfg.UseButtons {
			for i, c := range choices(cfg.Buttons, cfg.Options) {
				n.Buttons = append(n.Buttons, domain.Button{ID: choiceID(c, i), Label: choiceLabel(c)})
			}
		}
		return n, nil

	case domain.KindMenu:
		n := &domain.MenuNode{NodeBase: base, Prompt: cfg.Message}
		for i, c := range choices(cfg.Options, cfg.Buttons) {
			n.Options = append(n.Options, domain.MenuOption{
				ID:     choiceID(c, i),
				Label:  choiceLabel(c),
				Target: c.TargetNodeID,
			})
		}
		return n, nil

	case domain.KindInput:
		return &domain.InputNode{NodeBase: base, Prompt: cfg.Message, VariableName: cfg.VariableName}, nil

	case domain.KindCondition:
		n := &domain.ConditionNode{NodeBase: base, DefaultNodeID: cfg.DefaultNodeID}
		if n.DefaultNodeID == "" {
			n.DefaultNodeID = cfg.ElseNodeID
		}
		for _, c := range cfg.Conditions {
			variable := c.Variable
			if variable == "" {
				variable = domain.UserResponseKey
			}
			n.Conditions = append(n.Conditions, domain.Condition{
				Variable: variable,
				Operator: c.Operator,
				Value:    c.Value,
				Target:   c.TargetNodeID,
			})
		}
		return n, nil
	}

	return nil, fmt.Errorf("node %s: unknown node type '%s'", rec.ID, rec.Type)
}

// CompileAll compiles every record, joining all failures.
func CompileAll(records []dto.NodeRecord) ([]domain.Node, error) {
	nodes := make([]domain.Node, 0, len(records))
	var errs []error
	for _, rec := range records {
		n, err := Compile(rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		nodes = append(nodes, n)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nodes, nil
}

// Record encodes a node back into its author-time shape.
func Record(n domain.Node) dto.NodeRecord {
	base := n.Base()
	rec := dto.NodeRecord{
		ID:         base.ID,
		FlowID:     base.FlowID,
		Type:       string(n.Kind()),
		NextNodeID: base.Next,
		Config:     map[string]any{},
	}

	switch node := n.(type) {
	case *domain.MessageNode:
		rec.Config["message"] = node.Template
		if len(node.Buttons) > 0 {
			rec.Config["useButtons"] = true
			buttons := make([]any, 0, len(node.Buttons))
			for _, b := range node.Buttons {
				buttons = append(buttons, map[string]any{"id": b.ID, "label": b.Label})
			}
			rec.Config["buttons"] = buttons
		}
		putString(rec.Config, "responseNodeId", node.ResponseNodeID)
		if node.Handoff {
			rec.Config["handoff"] = true
			putString(rec.Config, "handoffReason", node.HandoffReason)
		}
	case *domain.MenuNode:
		rec.Config["message"] = node.Prompt
		options := make([]any, 0, len(node.Options))
		for _, o := range node.Options {
			options = append(options, map[string]any{"id": o.ID, "label": o.Label, "targetNodeId": o.Target})
		}
		rec.Config["options"] = options
	case *domain.InputNode:
		rec.Config["message"] = node.Prompt
		putString(rec.Config, "variableName", node.VariableName)
	case *domain.ConditionNode:
		conds := make([]any, 0, len(node.Conditions))
		for _, c := range node.Conditions {
			conds = append(conds, map[string]any{
				"variable":     c.Variable,
				"operator":     c.Operator,
				"value":        c.Value,
				"targetNodeId": c.Target,
			})
		}
		rec.Config["conditions"] = conds
		putString(rec.Config, "defaultNodeId", node.DefaultNodeID)
	}
	return rec
}

// ParseDocument reads a YAML (or JSON) flow document and compiles its nodes.
// Nodes without a flowId inherit the document's flow ID.
func ParseDocument(data []byte) (domain.FlowDefinition, []domain.Node, error) {
	var doc dto.FlowDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.FlowDefinition{}, nil, fmt.Errorf("failed to parse flow document: %w", err)
	}
	if doc.ID == "" {
		return domain.FlowDefinition{}, nil, fmt.Errorf("flow document missing id")
	}
	if doc.Status == "" {
		doc.Status = domain.FlowDraft
	}
	for i := range doc.Nodes {
		if doc.Nodes[i].FlowID == "" {
			doc.Nodes[i].FlowID = doc.ID
		}
	}
	nodes, err := CompileAll(doc.Nodes)
	if err != nil {
		return doc.FlowDefinition, nil, fmt.Errorf("flow %s: %w", doc.ID, err)
	}
	return doc.FlowDefinition, nodes, nil
}

// MarshalDocument renders a flow and its nodes as a YAML document.
func MarshalDocument(flow domain.FlowDefinition, nodes []domain.Node) ([]byte, error) {
	doc := dto.FlowDocument{FlowDefinition: flow}
	for _, n := range nodes {
		rec := Record(n)
		if rec.FlowID == flow.ID {
			rec.FlowID = ""
		}
		doc.Nodes = append(doc.Nodes, rec)
	}
	return yaml.Marshal(doc)
}

func decodeConfig(raw map[string]any, out *dto.NodeConfig) error {
	if len(raw) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.DecodeHookFuncType(choiceFromString),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// choiceFromString lets buttons and options be written as plain strings.
func choiceFromString(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(dto.ChoiceConfig{}) || from.Kind() != reflect.String {
		return data, nil
	}
	s := data.(string)
	return map[string]any{"id": s, "label": s}, nil
}

func choices(primary, fallback []dto.ChoiceConfig) []dto.ChoiceConfig {
	if len(primary) > 0 {
		return primary
	}
	return fallback
}

func choiceID(c dto.ChoiceConfig, i int) string {
	if c.ID != "" {
		return c.ID
	}
	return strconv.Itoa(i + 1)
}

func choiceLabel(c dto.ChoiceConfig) string {
	switch {
	case c.Label != "":
		return c.Label
	case c.Text != "":
		return c.Text
	}
	return c.ID
}

func putString(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}
