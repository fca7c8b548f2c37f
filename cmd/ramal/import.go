package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/ramal/internal/cli"
	"github.com/aretw0/ramal/internal/validator"
	"github.com/aretw0/ramal/pkg/adapters/file"
	"github.com/aretw0/ramal/pkg/adapters/sqlite"
)

var importCmd = &cobra.Command{
	Use:   "import <sqlite-dsn>",
	Short: "Copy flow documents into a SQLite flow database",
	Long: `Reads every flow document under the flows directory, validates it and
upserts it into the SQLite database the CRM publishes flows to.
Flows that fail validation are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	src := file.NewGraphStore(cfg.Flows.Dir, logger)
	db, err := sqlite.Open(args[0])
	if err != nil {
		return fmt.Errorf("open flow database: %w", err)
	}
	defer db.Close()
	dst, err := sqlite.NewGraphStore(ctx, db)
	if err != nil {
		return err
	}

	flows, err := src.ListFlows(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	imported := 0
	for _, f := range flows {
		nodes, err := src.GetNodes(ctx, f.ID)
		if err != nil {
			return err
		}
		report := validator.Validate(f, nodes)
		printReport(out, report)
		if !report.OK() {
			continue
		}
		if err := dst.PutFlow(ctx, f, nodes); err != nil {
			return fmt.Errorf("import %s: %w", f.ID, err)
		}
		imported++
	}
	fmt.Fprintf(out, "Imported %d of %d flows from %s\n", imported, len(flows), cfg.Flows.Dir)
	if imported < len(flows) {
		return errValidation
	}
	return nil
}
