package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/ramal/internal/cli"
	"github.com/aretw0/ramal/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "ramal",
	Short: "Ramal runs conversational flows for debt-collection chats",
	Long: `Ramal executes flows authored in the CRM against inbound WhatsApp
messages, keeps one session per chat and hands the chat to a human agent
when the flow asks for it or the bot cannot continue.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default $RAMAL_CONFIG or ./ramal.yaml)")
	pf.String("dir", "", "Directory of flow documents; forces the file flow source")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.String("log-format", "", "Log format: text or json")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var o cli.Overrides
	o.FlowsDir, _ = cmd.Flags().GetString("dir")
	o.LogLevel, _ = cmd.Flags().GetString("log-level")
	o.LogFormat, _ = cmd.Flags().GetString("log-format")
	return cli.LoadConfig(path, o)
}

// setup loads the config and builds the runtime. The caller closes it.
func setup(cmd *cobra.Command) (*cli.Runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	return cli.Build(cmd.Context(), cfg, logger)
}
