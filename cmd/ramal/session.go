package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/ramal/internal/cli"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and release chat sessions",
	Long: `List, inspect, find idle and release the sessions of chats in bot mode.
Only persistent backends (file, redis) outlive a single command.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List chats in bot mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			chats, err := rt.Sessions.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(chats) == 0 {
				fmt.Fprintln(out, "No active sessions found.")
				return nil
			}
			fmt.Fprintln(out, "Active sessions:")
			for _, c := range chats {
				fmt.Fprintln(out, "- "+c)
			}
			return nil
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <chat-id>",
	Short: "Print the session of a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			sess, err := rt.Sessions.Load(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("load session '%s': %w", args[0], err)
			}
			data, err := json.MarshalIndent(sess, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <chat-id>...",
	Short: "Release one or more chats to the agents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			bot, err := rt.NewBot()
			if err != nil {
				return err
			}
			var errs []error
			for _, chatID := range args {
				if err := bot.Release(cmd.Context(), chatID); err != nil {
					errs = append(errs, fmt.Errorf("release '%s': %w", chatID, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released chat '%s'\n", chatID)
			}
			return errors.Join(errs...)
		})
	},
}

var sessionIdleCmd = &cobra.Command{
	Use:   "idle",
	Short: "List chats waiting for a reply longer than --after",
	RunE: func(cmd *cobra.Command, args []string) error {
		after, _ := cmd.Flags().GetDuration("after")
		return withRuntime(cmd, func(rt *cli.Runtime) error {
			bot, err := rt.NewBot()
			if err != nil {
				return err
			}
			chats, err := bot.Idle(cmd.Context(), after)
			if err != nil {
				return err
			}
			for _, c := range chats {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd, sessionInspectCmd, sessionRmCmd, sessionIdleCmd)
	sessionIdleCmd.Flags().Duration("after", 30*time.Minute, "Minimum time without a reply")
}

func withRuntime(cmd *cobra.Command, fn func(rt *cli.Runtime) error) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}
