package meeting

import (
	"context"
	"log/slog"
	"time"

	"meetwatch/internal/config"
	"meetwatch/internal/logging"
	"meetwatch/internal/notifications"
	"meetwatch/internal/pipelinectl"
	"meetwatch/internal/registry"
	"meetwatch/internal/services/automation"
	"meetwatch/internal/session"
)

// AudioRouter reserves and releases the capture sink.
type AudioRouter interface {
	EnsureSink(ctx context.Context, sessionID string) error
	ReleaseSink(ctx context.Context, sessionID string) error
}

// Transcribers controls the background transcriber process.
type Transcribers interface {
	Launch(ctx context.Context, sessionID string) (pipelinectl.Record, error)
	Stop(ctx context.Context) (pipelinectl.StopResult, error)
	Inspect() (pipelinectl.Status, error)
}

// HealthChecker probes the transcription endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Index mirrors session metadata into the session registry.
type Index interface {
	Record(ctx context.Context, entry registry.Entry) error
}

// Dependencies are the collaborators a Service drives. Health, Index, and
// Notifier are optional.
type Dependencies struct {
	Store        *session.Store
	Driver       automation.Driver
	Audio        AudioRouter
	Transcribers Transcribers
	Health       HealthChecker
	Index        Index
	Notifier     notifications.Service
}

// Service runs the join, leave, chat, and status flows.
type Service struct {
	cfg          *config.Config
	store        *session.Store
	driver       automation.Driver
	audio        AudioRouter
	transcribers Transcribers
	health       HealthChecker
	index        Index
	notifier     notifications.Service
	logger       *slog.Logger

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	lockWait time.Duration
}

// New constructs a Service.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Service {
	return &Service{
		cfg:          cfg,
		store:        deps.Store,
		driver:       deps.Driver,
		audio:        deps.Audio,
		transcribers: deps.Transcribers,
		health:       deps.Health,
		index:        deps.Index,
		notifier:     deps.Notifier,
		logger:       logging.NewComponentLogger(logger, "meeting"),
		now:          time.Now,
		sleep:        sleepContext,
		lockWait:     defaultLockWait,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// recordIndex upserts the registry row for id. The session files stay
// authoritative, so failures are logged only.
func (s *Service) recordIndex(ctx context.Context, meeting *session.Meeting) {
	if s.index == nil || meeting == nil {
		return
	}
	lines, _ := s.store.LineCount(meeting.ID)
	mentions, _ := s.store.MentionCount(meeting.ID)
	if err := s.index.Record(ctx, registry.EntryFromMeeting(*meeting, lines, mentions)); err != nil {
		logging.WarnWithContext(s.logger, "session index update failed", "registry_write_failed",
			logging.String(logging.FieldSessionID, meeting.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
			logging.String(logging.FieldImpact, "meetwatch list may show stale data"),
		)
	}
}

func (s *Service) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "the push was not delivered"),
		)
	}
}
