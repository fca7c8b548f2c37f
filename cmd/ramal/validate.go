package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aretw0/ramal/internal/validator"
	"github.com/aretw0/ramal/pkg/ports"
)

var errValidation = errors.New("validation failed")

var validateCmd = &cobra.Command{
	Use:   "validate [flow...]",
	Short: "Check flows for consistency",
	Long: `Compiles each flow and crawls it from the start node, reporting broken
links, unreachable nodes, fields the engine ignores and loops that never
wait for the user. Without arguments every flow in the store is checked.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	ctx := cmd.Context()

	flowIDs := args
	if len(flowIDs) == 0 {
		lister, ok := rt.Graphs.(ports.FlowLister)
		if !ok {
			return errors.New("flow store cannot list flows; name the flows to validate")
		}
		flows, err := lister.ListFlows(ctx)
		if err != nil {
			return err
		}
		for _, f := range flows {
			flowIDs = append(flowIDs, f.ID)
		}
	}

	failed := false
	for _, id := range flowIDs {
		report, err := validator.ValidateFlow(ctx, rt.Graphs, id)
		if err != nil {
			report = &validator.Report{FlowID: id, Err: err}
		}
		printReport(cmd.OutOrStdout(), report)
		failed = failed || !report.OK()
	}
	if failed {
		return errValidation
	}
	return nil
}

func printReport(w io.Writer, r *validator.Report) {
	red := color.New(color.FgRed, color.Bold).SprintFunc()
	green := color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if !r.OK() {
		fmt.Fprintf(w, "%s %s: %v\n", red("✗"), r.FlowID, r.Err)
		return
	}
	fmt.Fprintf(w, "%s %s\n", green("✓"), r.FlowID)
	for _, id := range r.Unreachable {
		fmt.Fprintf(w, "  %s node '%s' is unreachable from the start node\n", yellow("!"), id)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  %s %s\n", yellow("!"), warning)
	}
}
