package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"meetwatch/internal/registry"
	"meetwatch/internal/session"
)

const (
	transcriptTextWidth = 100
	defaultFollowLines  = 10
	followWait          = 2 * time.Second
)

func newTranscriptCommand(ctx *commandContext) *cobra.Command {
	var mentions bool
	var tail int
	var asJSON bool
	var follow bool
	cmd := &cobra.Command{
		Use:   "transcript [session-id]",
		Short: "Print a session transcript (defaults to the current session)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := ctx.sessionStore()
			id, err := resolveSessionID(store, args)
			if err != nil {
				return err
			}
			if _, err := store.Load(id); err != nil {
				return err
			}
			if follow {
				if asJSON {
					return errors.New("--follow cannot be combined with --json")
				}
				return followTranscript(cmd, store, id, mentions, tail)
			}
			var lines []session.Line
			if mentions {
				lines, err = store.Mentions(id)
			} else {
				lines, err = store.Transcript(id)
			}
			if err != nil {
				return err
			}
			if tail > 0 && len(lines) > tail {
				lines = lines[len(lines)-tail:]
			}
			if asJSON {
				if lines == nil {
					lines = []session.Line{}
				}
				return writeJSON(cmd, lines)
			}
			out := cmd.OutOrStdout()
			if len(lines) == 0 {
				fmt.Fprintf(out, "No transcript lines for %s yet\n", id)
				return nil
			}
			headers := []string{"Time", "Text"}
			if mentions {
				headers = []string{"Time", "Kind", "Text"}
			}
			rows := make([][]string, 0, len(lines))
			for _, line := range lines {
				ts := line.Time.Format(session.TimestampLayout)
				if mentions {
					rows = append(rows, []string{ts, string(line.Kind), line.Text})
				} else {
					rows = append(rows, []string{ts, line.Text})
				}
			}
			widths := []int{0, transcriptTextWidth}
			if mentions {
				widths = []int{0, 0, transcriptTextWidth}
			}
			fmt.Fprintln(out, renderTable(headers, rows, nil, widths...))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&mentions, "mentions", "m", false, "Show only mention and question lines")
	cmd.Flags().IntVarP(&tail, "tail", "n", 0, "Show only the last N lines")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until the session ends")
	return cmd
}

// followTranscript prints the last lines of id and then streams new ones
// until the session ends or the user interrupts.
func followTranscript(cmd *cobra.Command, store *session.Store, id string, mentions bool, tail int) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if tail <= 0 {
		tail = defaultFollowLines
	}
	out := cmd.OutOrStdout()
	res, err := store.Tail(ctx, id, session.TailOptions{Offset: -1, Limit: tail, Mentions: mentions})
	for {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		for _, line := range res.Lines {
			fmt.Fprintln(out, formatLine(line))
		}
		if len(res.Lines) == 0 {
			meeting, loadErr := store.Load(id)
			if loadErr != nil {
				return loadErr
			}
			if !meeting.Active() {
				fmt.Fprintf(out, "Session %s ended\n", id)
				return nil
			}
		}
		res, err = store.Tail(ctx, id, session.TailOptions{Offset: res.Offset, Wait: followWait, Mentions: mentions})
	}
}

func formatLine(line session.Line) string {
	ts := line.Time.Format(session.TimestampLayout)
	if line.Kind != "" {
		return fmt.Sprintf("[%s] %s: %s", ts, line.Kind, line.Text)
	}
	return fmt.Sprintf("[%s] %s", ts, line.Text)
}

// resolveSessionID returns the explicit id or the id the current pointer
// names, even when that session has already ended.
func resolveSessionID(store *session.Store, args []string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	id, ok, err := store.CurrentID()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("no current session; pass a session id (see meetwatch list)")
	}
	return id, nil
}

type listedSession struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	URL             string     `json:"url"`
	ParticipantName string     `json:"participant_name"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	TranscriptLines int        `json:"transcript_lines"`
	Mentions        int        `json:"mentions"`
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := collectSessions(ctx.commandScope(cmd), ctx, limit)
			if err != nil {
				return err
			}
			if asJSON {
				if sessions == nil {
					sessions = []listedSession{}
				}
				return writeJSON(cmd, sessions)
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded")
				return nil
			}
			now := timeNow()
			rows := make([][]string, 0, len(sessions))
			for _, s := range sessions {
				m := session.Meeting{StartedAt: s.StartedAt, EndedAt: s.EndedAt}
				rows = append(rows, []string{
					s.ID,
					s.Status,
					s.StartedAt.Local().Format("2006-01-02 15:04"),
					m.Duration(now).Round(time.Minute).String(),
					strconv.Itoa(s.TranscriptLines),
					strconv.Itoa(s.Mentions),
					s.ParticipantName,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Session", "Status", "Started", "Duration", "Lines", "Mentions", "Participant"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to show (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// collectSessions reads the session index, falling back to scanning the
// meetings directory when the index is unavailable or empty.
func collectSessions(ctx context.Context, cc *commandContext, limit int) ([]listedSession, error) {
	if index := cc.registry(); index != nil {
		entries, err := index.List(ctx, limit)
		if err == nil && len(entries) > 0 {
			sessions := fromEntries(entries)
			// Counts in the index are refreshed only on join and leave.
			store := cc.sessionStore()
			for i := range sessions {
				if sessions[i].Status == string(session.StatusActive) {
					sessions[i].TranscriptLines, _ = store.LineCount(sessions[i].ID)
					sessions[i].Mentions, _ = store.MentionCount(sessions[i].ID)
				}
			}
			return sessions, nil
		}
	}
	store := cc.sessionStore()
	meetings, err := store.List()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(meetings) > limit {
		meetings = meetings[:limit]
	}
	sessions := make([]listedSession, 0, len(meetings))
	for _, m := range meetings {
		lines, _ := store.LineCount(m.ID)
		mentions, _ := store.MentionCount(m.ID)
		sessions = append(sessions, listedSession{
			ID:              m.ID,
			Status:          string(m.Status),
			URL:             m.URL,
			ParticipantName: m.ParticipantName,
			StartedAt:       m.StartedAt,
			EndedAt:         m.EndedAt,
			TranscriptLines: lines,
			Mentions:        mentions,
		})
	}
	return sessions, nil
}

func fromEntries(entries []registry.Entry) []listedSession {
	sessions := make([]listedSession, 0, len(entries))
	for _, e := range entries {
		sessions = append(sessions, listedSession{
			ID:              e.ID,
			Status:          string(e.Status),
			URL:             e.URL,
			ParticipantName: e.ParticipantName,
			StartedAt:       e.StartedAt,
			EndedAt:         e.EndedAt,
			TranscriptLines: e.TranscriptLines,
			Mentions:        e.MentionCount,
		})
	}
	return sessions
}
