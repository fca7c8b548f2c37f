package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/ramal/pkg/domain"
)

// GraphOverlay contains dynamic session data to visualize on the graph.
type GraphOverlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// GenerateMermaid produces a Mermaid flowchart of a flow.
// Node shapes follow the node kind:
//   - Start: ((Circle))
//   - Condition: {Rhombus}
//   - Menu and input: [/Parallelogram/]
//   - Handoff message: [[Subroutine]]
//   - Message: [Rectangle]
//
// Edges carry their option label or condition; default branches are dotted.
func GenerateMermaid(g *domain.Graph, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		id := node.Base().ID
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch n := node.(type) {
		case *domain.ConditionNode:
			opener, closer = "{", "}"
		case *domain.MenuNode, *domain.InputNode:
			opener, closer = "[/", "/]"
		case *domain.MessageNode:
			if n.Handoff {
				opener, closer = "[[", "]]"
			}
		}
		if id == g.Flow.StartNodeID {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escape(id), closer)

		for _, e := range domain.Edges(node) {
			safeTo := sanitizeMermaidID(e.To)
			switch {
			case e.Kind == domain.EdgeDefault:
				fmt.Fprintf(&sb, "    %s -. \"else\" .-> %s\n", safeID, safeTo)
			case e.Label != "":
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(e.Label), safeTo)
			default:
				fmt.Fprintf(&sb, "    %s --> %s\n", safeID, safeTo)
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_").Replace(id)
}
