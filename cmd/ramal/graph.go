package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/ramal/internal/presentation/graph"
	"github.com/aretw0/ramal/pkg/domain"
	"github.com/aretw0/ramal/pkg/registry"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <flow>",
	Short: "Export the flow graph visualization",
	Long: `Outputs a Mermaid flowchart of the flow. With --chat, the nodes the
chat visited and its current node are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()
		ctx := cmd.Context()

		g, err := registry.NewCatalog(rt.Graphs).Graph(ctx, args[0])
		if err != nil {
			return err
		}

		var overlay *graph.GraphOverlay
		if chatID, _ := cmd.Flags().GetString("chat"); chatID != "" {
			sess, err := rt.Sessions.Load(ctx, chatID)
			switch {
			case errors.Is(err, domain.ErrSessionNotFound):
				return fmt.Errorf("chat %s has no bot session", chatID)
			case err != nil:
				return err
			case sess.FlowID == g.Flow.ID:
				overlay = &graph.GraphOverlay{VisitedNodes: sess.History, CurrentNode: sess.CurrentNodeID}
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("chat", "", "Highlight the path of this chat's session")
}
