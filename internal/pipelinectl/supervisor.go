package pipelinectl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"meetwatch/internal/logging"
	"meetwatch/internal/services"
)

// Options configures a Supervisor.
type Options struct {
	RecordPath string
	Executable string
	ConfigPath string
	Grace      time.Duration
}

// Status is a liveness snapshot of the recorded transcriber.
type Status struct {
	Record  *Record
	Running bool
}

// State renders the liveness as running or stopped.
func (s Status) State() string {
	if s.Running {
		return "running"
	}
	return "stopped"
}

// StopResult reports how a stop request concluded.
type StopResult struct {
	PID        int
	SessionID  string
	WasRunning bool
	ForcedKill bool
}

// Supervisor owns the transcriber process record.
type Supervisor struct {
	opts         Options
	logger       *slog.Logger
	pollInterval time.Duration
}

// New constructs a Supervisor.
func New(opts Options, logger *slog.Logger) *Supervisor {
	if opts.Grace <= 0 {
		opts.Grace = 5 * time.Second
	}
	return &Supervisor{
		opts:         opts,
		logger:       logging.NewComponentLogger(logger, "pipelinectl"),
		pollInterval: 50 * time.Millisecond,
	}
}

// Launch starts a detached transcriber for sessionID. Any recorded live
// process is stopped first so at most one transcriber runs per host.
func (s *Supervisor) Launch(ctx context.Context, sessionID string) (Record, error) {
	if strings.TrimSpace(s.opts.Executable) == "" {
		return Record{}, fmt.Errorf("launch pipeline: executable path is empty")
	}
	if existing, err := s.Inspect(); err == nil && existing.Record != nil {
		logging.WarnWithContext(s.logger, "pipeline record present; superseding", "pipeline_superseded",
			logging.Int("pid", existing.Record.PID),
			logging.String("previous_session", existing.Record.SessionID),
			logging.Bool("running", existing.Running),
			logging.String(logging.FieldErrorHint, "a previous session was not left cleanly"),
			logging.String(logging.FieldImpact, "previous transcriber is stopped"),
		)
		if _, err := s.Stop(ctx); err != nil {
			return Record{}, services.Wrap(services.ErrResourceConflict, "pipelinectl", "supersede", "", err)
		}
	}

	args := []string{"pipeline", "--session", sessionID}
	if cfg := strings.TrimSpace(s.opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	proc := exec.Command(s.opts.Executable, args...) //nolint:gosec
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return Record{}, fmt.Errorf("launch pipeline: %w", err)
	}
	go func() { _ = proc.Wait() }()

	rec := Record{
		PID:        proc.Process.Pid,
		SessionID:  sessionID,
		StartedAt:  time.Now().UTC(),
		Executable: s.opts.Executable,
	}
	if err := writeRecord(s.opts.RecordPath, rec); err != nil {
		_ = signal(rec.PID, unix.SIGKILL)
		return Record{}, err
	}
	s.logger.Info("pipeline launched",
		logging.Int("pid", rec.PID),
		logging.String(logging.FieldSessionID, sessionID),
		logging.String(logging.FieldEventType, "pipeline_launched"),
	)
	return rec, nil
}

// Inspect reads the record and probes liveness. A missing record or a dead
// process is reported as not running, never as an error.
func (s *Supervisor) Inspect() (Status, error) {
	rec, err := readRecord(s.opts.RecordPath)
	if err != nil || rec == nil {
		return Status{}, err
	}
	return Status{Record: rec, Running: Alive(rec.PID)}, nil
}

// Stop asks the recorded transcriber to exit, waits up to the grace period,
// force-kills it if needed, and clears the record. No record is a no-op and
// an unreadable one is discarded.
func (s *Supervisor) Stop(ctx context.Context) (StopResult, error) {
	status, err := s.Inspect()
	if errors.Is(err, errCorruptRecord) {
		// Nothing can be signalled without a pid.
		logging.WarnWithContext(s.logger, "discarding unreadable pipeline record", "pipeline_record_corrupt",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop any stray meetwatch pipeline process by hand"),
			logging.String(logging.FieldImpact, "the transcriber is treated as stopped"),
		)
		return StopResult{}, removeRecord(s.opts.RecordPath)
	}
	if err != nil {
		return StopResult{}, err
	}
	if status.Record == nil {
		return StopResult{}, nil
	}
	result := StopResult{PID: status.Record.PID, SessionID: status.Record.SessionID, WasRunning: status.Running}
	if status.Running && status.Record.PID != os.Getpid() {
		if err := signal(status.Record.PID, unix.SIGTERM); err != nil {
			return result, fmt.Errorf("signal pipeline %d: %w", status.Record.PID, err)
		}
		if !s.waitExit(ctx, status.Record.PID, s.opts.Grace) {
			logging.WarnWithContext(s.logger, "pipeline ignored stop request; killing", "pipeline_force_killed",
				logging.Int("pid", status.Record.PID),
				logging.Duration("grace", s.opts.Grace),
				logging.String(logging.FieldErrorHint, "inspect the session pipeline.log"),
				logging.String(logging.FieldImpact, "the in-flight chunk is lost"),
			)
			if err := signal(status.Record.PID, unix.SIGKILL); err != nil {
				return result, fmt.Errorf("kill pipeline %d: %w", status.Record.PID, err)
			}
			s.waitExit(context.WithoutCancel(ctx), status.Record.PID, time.Second)
			result.ForcedKill = true
		}
	}
	if err := removeRecord(s.opts.RecordPath); err != nil {
		return result, err
	}
	s.logger.Info("pipeline stopped",
		logging.Int("pid", result.PID),
		logging.Bool("forced", result.ForcedKill),
		logging.String(logging.FieldEventType, "pipeline_stopped"),
	)
	return result, nil
}

// Clear removes the record without signalling anything.
func (s *Supervisor) Clear() error {
	return removeRecord(s.opts.RecordPath)
}

// ClearIfOwned removes the record only while it still names pid. A
// transcriber calls it on exit so it never erases its successor's record.
func (s *Supervisor) ClearIfOwned(pid int) error {
	rec, err := readRecord(s.opts.RecordPath)
	if err != nil || rec == nil || rec.PID != pid {
		return err
	}
	return removeRecord(s.opts.RecordPath)
}

func (s *Supervisor) waitExit(ctx context.Context, pid int, limit time.Duration) bool {
	deadline := time.NewTimer(limit)
	defer deadline.Stop()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		if !Alive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return !Alive(pid)
		case <-deadline.C:
			return !Alive(pid)
		case <-ticker.C:
		}
	}
}
