package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aretw0/ramal"
	"github.com/aretw0/ramal/internal/cli"
	"github.com/aretw0/ramal/internal/presentation/tui"
	"github.com/aretw0/ramal/pkg/runner"
)

var chatCmd = &cobra.Command{
	Use:   "chat [flow]",
	Short: "Talk to a flow from the terminal",
	Long: `Starts a flow for a local chat and reads replies from standard input.
Messages are rendered as markdown when the output is a terminal.
Type /reset to restart the flow, /session to dump the session and exit to quit.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("chat", "console", "Chat ID of the local conversation")
	chatCmd.Flags().String("entity", "", "Entity (debtor) the session is bound to")
	chatCmd.Flags().Bool("plain", false, "Disable the banner and markdown rendering")
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var flowID string
	if len(args) > 0 {
		flowID = args[0]
	} else if flowID, err = cli.DefaultFlow(ctx, rt.Graphs); err != nil {
		return err
	}

	chatID, _ := cmd.Flags().GetString("chat")
	entityID, _ := cmd.Flags().GetString("entity")
	plain, _ := cmd.Flags().GetBool("plain")

	runnerOpts := []runner.Option{
		runner.WithInput(os.Stdin),
		runner.WithOutput(os.Stdout),
		runner.WithChat(chatID),
		runner.WithFlow(flowID),
		runner.WithEntity(entityID),
		runner.WithLogger(rt.Logger),
	}
	var consoleOpts []runner.ConsoleOption

	if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
		tui.PrintBanner(os.Stdout)
		consoleOpts = append(consoleOpts, runner.WithConsoleRenderer(tui.NewRenderer()))
		runnerOpts = append(runnerOpts, runner.WithNoticeStyle(tui.Notice))
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		// Piped input: no prompt noise in the transcript.
		runnerOpts = append(runnerOpts, runner.WithPrompt(""))
	}

	console := runner.NewConsole(os.Stdout, consoleOpts...)
	bot, err := rt.NewBot(ramal.WithChannel(console), ramal.WithLifecycle(console))
	if err != nil {
		return err
	}

	err = runner.NewRunner(bot, runnerOpts...).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
