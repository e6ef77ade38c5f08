package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"meetwatch/internal/meeting"
	"meetwatch/internal/preflight"
)

var timeNow = time.Now

func newJoinCommand(ctx *commandContext) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "join <meeting-url>",
		Short: "Join a meeting and start transcribing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctx.meetingService().Join(ctx.commandScope(cmd), args[0], name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			kind := statusOK
			label := "joined"
			if result.State == meeting.StateTimedOut {
				kind = statusWarn
				label = "waiting for admission"
			}
			fmt.Fprintln(out, renderStatusLine("Session", statusInfo, result.SessionID, colorize))
			fmt.Fprintln(out, renderStatusLine("Call", kind, label, colorize))
			if result.Superseded != "" {
				fmt.Fprintln(out, renderStatusLine("Previous session", statusInfo, result.Superseded+" ended", colorize))
			}
			if result.PipelinePID > 0 {
				fmt.Fprintln(out, renderStatusLine("Transcriber", statusOK, fmt.Sprintf("pid %d", result.PipelinePID), colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Transcriber", statusError, "not running", colorize))
			}
			fmt.Fprintln(out, renderStatusLine("Transcript", statusInfo, result.Dir, colorize))
			for _, warning := range result.Warnings {
				fmt.Fprintln(out, renderStatusLine("Warning", statusWarn, warning, colorize))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Participant display name (defaults to session.participant_name)")
	return cmd
}

func newLeaveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Leave the current meeting and stop transcribing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctx.meetingService().Leave(ctx.commandScope(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if result.NoSession {
				fmt.Fprintln(out, "No current session")
				return nil
			}
			fmt.Fprintln(out, result.Summary())
			for _, stepErr := range result.Errors {
				fmt.Fprintln(out, renderStatusLine("Warning", statusWarn, stepErr.Error(), colorize))
			}
			return nil
		},
	}
}

func newChatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message...>",
		Short: "Post a message into the meeting chat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			if _, err := ctx.meetingService().Chat(ctx.commandScope(cmd), message); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Message sent")
			return nil
		},
	}
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session and transcriber state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := ctx.meetingService().Status(ctx.commandScope(cmd))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			for _, line := range renderStatusReport(report, preflight.CheckDirectories(ctx.config), timeNow(), shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
