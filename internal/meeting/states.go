package meeting

import (
	"context"
	"log/slog"

	"meetwatch/internal/logging"
)

// JoinState is a step of the join sequence.
type JoinState string

const (
	StateIdle            JoinState = "idle"
	StateNavigating      JoinState = "navigating"
	StateDialogDismissal JoinState = "dialog_dismissal"
	StateMediaDisabled   JoinState = "media_disabled"
	StateNameEntry       JoinState = "name_entry"
	StateJoinRequested   JoinState = "join_requested"
	StateConfirmed       JoinState = "confirmed"
	StateTimedOut        JoinState = "timed_out"
)

// Terminal reports whether the join sequence stops in this state.
func (s JoinState) Terminal() bool {
	return s == StateConfirmed || s == StateTimedOut
}

type joinTracker struct {
	logger *slog.Logger
	state  JoinState
}

func newJoinTracker(logger *slog.Logger) *joinTracker {
	return &joinTracker{logger: logger, state: StateIdle}
}

func (t *joinTracker) enter(ctx context.Context, next JoinState, attrs ...logging.Attr) {
	fields := append([]logging.Attr{
		logging.String("from", string(t.state)),
		logging.String("to", string(next)),
		logging.String(logging.FieldEventType, "join_state"),
	}, attrs...)
	t.logger.InfoContext(ctx, "join state", logging.Args(fields...)...)
	t.state = next
}
