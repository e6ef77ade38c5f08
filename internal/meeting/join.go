package meeting

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"meetwatch/internal/logging"
	"meetwatch/internal/notifications"
	"meetwatch/internal/services"
	"meetwatch/internal/services/automation"
)

// JoinResult describes a finished join.
type JoinResult struct {
	SessionID   string
	State       JoinState
	Dir         string
	PipelinePID int
	Superseded  string
	Warnings    []string
}

// Join enters the meeting at rawURL as name and starts transcription. An
// empty name uses the configured participant name. Reaching TimedOut is not
// an error: a waiting room may still admit the participant later.
func (s *Service) Join(ctx context.Context, rawURL, name string) (*JoinResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(s.cfg.Session.URLPattern, rawURL); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.cfg.Session.ParticipantName
	}
	id := ExtractSessionID(rawURL)
	ctx = services.WithSessionID(ctx, id)
	logger := logging.WithContext(ctx, s.logger)
	result := &JoinResult{SessionID: id, State: StateIdle, Dir: s.store.Dir(id)}

	release, err := s.acquire(ctx, "join")
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := s.driver.List(ctx); err != nil {
		return nil, services.Wrap(services.ErrAutomationUnavailable, "meeting", "join", "cannot list ui elements", err)
	}

	if previous, ok, err := s.store.CurrentID(); err != nil {
		return nil, err
	} else if ok && previous != id {
		logger.Info("superseding previous session",
			logging.String("previous_session", previous),
			logging.String(logging.FieldEventType, "session_superseded"),
		)
		result.Superseded = previous
		for _, stepErr := range s.finalize(ctx, previous, false).Errors {
			result.Warnings = append(result.Warnings, "finalize "+previous+": "+stepErr.Error())
		}
	}

	// The sink must be the default output before the page opens its audio
	// stream, and a failure here leaves the UI untouched.
	if err := s.audio.EnsureSink(ctx, id); err != nil {
		if errors.Is(err, services.ErrAudioUnavailable) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrAudioUnavailable, "meeting", "join", "reserve capture sink", err)
	}
	// Until the session exists leave cannot find the sink, so an aborted join
	// hands the default output back here.
	recorded := false
	defer func() {
		if recorded {
			return
		}
		if err := s.audio.ReleaseSink(context.WithoutCancel(ctx), id); err != nil {
			logging.WarnWithContext(logger, "capture sink not released after failed join", "sink_release_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "unload the meetwatch null sink with pactl"),
				logging.String(logging.FieldImpact, "system audio stays routed into the capture sink"),
			)
		}
	}()

	if s.health != nil {
		if err := s.health.Health(ctx); err != nil {
			logging.WarnWithContext(logger, "transcription endpoint unhealthy", "transcription_unavailable",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "start the transcription server or check transcription.base_url"),
				logging.String(logging.FieldImpact, "transcript lines are dropped until the endpoint recovers"),
			)
			result.Warnings = append(result.Warnings, "transcription endpoint unhealthy: "+err.Error())
		}
	}

	state, err := s.enterCall(ctx, logger, rawURL, name)
	if err != nil {
		return nil, err
	}
	result.State = state
	if state == StateTimedOut {
		logging.WarnWithContext(logger, "join not confirmed", "join_timed_out",
			logging.Int("attempts", s.cfg.Automation.JoinAttempts),
			logging.String(logging.FieldErrorHint, "the host may still need to admit the participant"),
			logging.String(logging.FieldImpact, "transcription starts anyway and captures once admitted"),
		)
		result.Warnings = append(result.Warnings, "join not confirmed; the meeting may still be in a waiting room")
	}

	meeting, err := s.store.Create(id, rawURL, name, s.now())
	if err != nil {
		return nil, err
	}
	recorded = true
	if err := s.store.SetCurrent(id); err != nil {
		return nil, err
	}
	s.recordIndex(ctx, meeting)

	rec, err := s.transcribers.Launch(ctx, id)
	if err != nil {
		logging.ErrorWithContext(logger, "transcriber launch failed", "pipeline_launch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run meetwatch doctor and check pipeline.log in the session directory"),
			logging.String(logging.FieldImpact, "the call is joined but nothing is transcribed"),
		)
		result.Warnings = append(result.Warnings, "transcriber not started: "+err.Error())
	} else {
		result.PipelinePID = rec.PID
	}

	logger.Info("join complete",
		logging.String("state", string(state)),
		logging.Int("pipeline_pid", result.PipelinePID),
		logging.String("dir", result.Dir),
		logging.String(logging.FieldEventType, "join_complete"),
	)
	event := notifications.EventJoined
	if state == StateTimedOut {
		event = notifications.EventWaiting
	}
	s.notify(ctx, event, notifications.Payload{"session": id, "url": rawURL})
	return result, nil
}

// enterCall runs the UI sequence and returns Confirmed or TimedOut. Missing
// elements are expected and only logged; driver failures abort.
func (s *Service) enterCall(ctx context.Context, logger *slog.Logger, rawURL, name string) (JoinState, error) {
	auto := s.cfg.Automation
	tracker := newJoinTracker(logger)

	tracker.enter(ctx, StateNavigating, logging.String("url", rawURL))
	if err := s.driver.Navigate(ctx, rawURL); err != nil {
		return "", err
	}
	if err := s.sleep(ctx, s.cfg.PageSettle()); err != nil {
		return "", err
	}

	tracker.enter(ctx, StateDialogDismissal)
	for _, button := range auto.DismissButtons {
		if err := s.clickOptional(ctx, logger, button); err != nil {
			return "", err
		}
	}

	tracker.enter(ctx, StateMediaDisabled)
	for _, group := range [][]string{auto.CameraButtons, auto.MicrophoneButtons} {
		if _, err := s.clickFirstOptional(ctx, logger, group); err != nil {
			return "", err
		}
	}

	tracker.enter(ctx, StateNameEntry)
	elements, err := s.driver.List(ctx)
	if err != nil {
		return "", err
	}
	if field, ok := automation.Find(elements, auto.NameFields); ok {
		if err := s.clickOptional(ctx, logger, field); err != nil {
			return "", err
		}
		if err := s.driver.Type(ctx, name); err != nil {
			return "", err
		}
	} else {
		logger.Debug("no name field visible", logging.String(logging.FieldEventType, "ui_absent"))
	}

	clicked, err := s.clickFirstOptional(ctx, logger, auto.JoinButtons)
	if err != nil {
		return "", err
	}
	tracker.enter(ctx, StateJoinRequested, logging.String("button", clicked))

	for attempt := 1; attempt <= auto.JoinAttempts; attempt++ {
		elements, err := s.driver.List(ctx)
		if err != nil {
			logger.Debug("poll list failed", logging.Int("attempt", attempt), logging.Error(err))
		} else if s.joined(elements) {
			tracker.enter(ctx, StateConfirmed, logging.Int("attempts", attempt))
			return StateConfirmed, nil
		}
		if attempt == auto.JoinAttempts {
			break
		}
		if err := s.sleep(ctx, s.cfg.PollInterval()); err != nil {
			return "", err
		}
	}
	tracker.enter(ctx, StateTimedOut, logging.Int("attempts", auto.JoinAttempts))
	return StateTimedOut, nil
}

// joined evaluates the configured in-call predicate.
func (s *Service) joined(elements []automation.Element) bool {
	signals := s.cfg.Automation.JoinedSignals
	if s.cfg.Automation.JoinedRequireAll {
		return automation.HasAll(elements, signals)
	}
	_, ok := automation.Find(elements, signals)
	return ok
}
