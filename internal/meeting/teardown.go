package meeting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetwatch/internal/logging"
	"meetwatch/internal/notifications"
	"meetwatch/internal/pipelinectl"
	"meetwatch/internal/services"
	"meetwatch/internal/services/automation"
	"meetwatch/internal/session"
)

// TeardownResult reports what Leave did. Errors collects step failures; the
// remaining steps still ran.
type TeardownResult struct {
	SessionID  string
	NoSession  bool
	Pipeline   pipelinectl.StopResult
	LeftCall   bool
	LeaveClick string
	Meeting    *session.Meeting
	Errors     []error
}

// Leave tears down the current session. Without a current pointer it returns
// immediately and performs no step. A pointer to an ended or missing session
// is still cleaned up, so a partially failed earlier run converges.
func (s *Service) Leave(ctx context.Context) (*TeardownResult, error) {
	release, err := s.acquire(ctx, "leave")
	if err != nil {
		return nil, err
	}
	defer release()

	id, ok, err := s.store.CurrentID()
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Info("no current session; nothing to leave", logging.String(logging.FieldEventType, "leave_noop"))
		return &TeardownResult{NoSession: true}, nil
	}
	return s.finalize(services.WithSessionID(ctx, id), id, true), nil
}

// finalize runs every teardown step for id. Each step is idempotent and
// independent of the others' outcome.
func (s *Service) finalize(ctx context.Context, id string, leaveCall bool) *TeardownResult {
	logger := logging.WithContext(ctx, s.logger)
	result := &TeardownResult{SessionID: id}
	fail := func(step string, err error) {
		wrapped := services.Wrap(services.ErrBackground, "teardown", step, "", err)
		result.Errors = append(result.Errors, wrapped)
		logging.WarnWithContext(logger, "teardown step failed", "teardown_step_failed",
			logging.String("step", step),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run meetwatch leave again once the cause is fixed"),
			logging.String(logging.FieldImpact, "resources for this session may still be held"),
		)
	}

	stopped, err := s.transcribers.Stop(ctx)
	result.Pipeline = stopped
	if err != nil {
		fail("stop transcriber", err)
	} else if stopped.WasRunning {
		logger.Info("transcriber stopped",
			logging.Int("pid", stopped.PID),
			logging.Bool("forced", stopped.ForcedKill),
			logging.String(logging.FieldEventType, "pipeline_stopped"),
		)
	}

	if leaveCall {
		clicked, err := s.leaveCall(ctx)
		switch {
		case err != nil:
			fail("leave call", err)
		case clicked != "":
			result.LeftCall = true
			result.LeaveClick = clicked
			logger.Info("left call", logging.String("button", clicked), logging.String(logging.FieldEventType, "call_left"))
		default:
			logger.Info("no leave affordance visible", logging.String(logging.FieldEventType, "ui_absent"))
		}
	}

	if err := s.audio.ReleaseSink(ctx, id); err != nil {
		fail("release sink", err)
	}

	meeting, err := s.store.MarkEnded(id, s.now())
	switch {
	case errors.Is(err, session.ErrNotFound):
		logger.Debug("session metadata missing; nothing to end")
	case err != nil:
		fail("mark ended", err)
	default:
		result.Meeting = meeting
		s.recordIndex(ctx, meeting)
		lines, _ := s.store.LineCount(id)
		mentions, _ := s.store.MentionCount(id)
		s.notify(ctx, notifications.EventSessionEnded, notifications.Payload{
			"session":  id,
			"duration": meeting.Duration(s.now()).Round(time.Second),
			"lines":    lines,
			"mentions": mentions,
		})
	}

	if current, ok, err := s.store.CurrentID(); err != nil {
		fail("clear pointer", err)
	} else if ok && current == id {
		if err := s.store.ClearCurrent(); err != nil {
			fail("clear pointer", err)
		}
	}

	logger.Info("session finalized",
		logging.Int("step_failures", len(result.Errors)),
		logging.String(logging.FieldEventType, "session_finalized"),
	)
	return result
}

func (s *Service) leaveCall(ctx context.Context) (string, error) {
	elements, err := s.driver.List(ctx)
	if err != nil {
		return "", err
	}
	name, ok := automation.Find(elements, s.cfg.Automation.LeaveButtons)
	if !ok {
		return "", nil
	}
	res, err := s.driver.Click(ctx, name)
	if err != nil {
		return "", err
	}
	if res != automation.Clicked {
		return "", nil
	}
	return name, nil
}

// Summary renders a one-line description of the teardown.
func (r *TeardownResult) Summary() string {
	if r == nil || r.NoSession {
		return "no current session"
	}
	pipeline := "not running"
	if r.Pipeline.WasRunning {
		pipeline = fmt.Sprintf("stopped pid %d", r.Pipeline.PID)
		if r.Pipeline.ForcedKill {
			pipeline += " (killed)"
		}
	}
	call := "no leave button found"
	if r.LeftCall {
		call = "left call"
	}
	return fmt.Sprintf("session %s ended: transcriber %s, %s", r.SessionID, pipeline, call)
}
