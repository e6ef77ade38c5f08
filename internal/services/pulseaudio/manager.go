package pulseaudio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"meetwatch/internal/fileutil"
	"meetwatch/internal/logging"
	"meetwatch/internal/services"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Options configures the sink that Manager creates.
type Options struct {
	Binary     string
	SinkName   string
	SampleRate int
	Channels   int
	Format     string
	RecordPath string
}

// Handle is the persisted record of a sink this tool created.
type Handle struct {
	ModuleID        int       `json:"module_id"`
	SinkName        string    `json:"sink_name"`
	SessionID       string    `json:"session_id"`
	PreviousDefault string    `json:"previous_default,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Manager creates, reuses, and releases the reserved capture sink.
type Manager struct {
	opts   Options
	run    Runner
	logger *slog.Logger
	now    func() time.Time
}

// NewManager constructs a sink manager.
func NewManager(opts Options, logger *slog.Logger) *Manager {
	if opts.Binary == "" {
		opts.Binary = "pactl"
	}
	return &Manager{
		opts:   opts,
		run:    execRunner,
		logger: logging.NewComponentLogger(logger, "pulseaudio"),
		now:    time.Now,
	}
}

// WithRunner sets a custom command runner (for testing).
func (m *Manager) WithRunner(runner Runner) *Manager {
	if runner != nil {
		m.run = runner
	}
	return m
}

// SinkName returns the reserved sink name.
func (m *Manager) SinkName() string {
	return m.opts.SinkName
}

// MonitorSource returns the PulseAudio source that mirrors the sink's output.
func (m *Manager) MonitorSource() string {
	return m.opts.SinkName + ".monitor"
}

// EnsureSink makes the reserved sink exist and be the default output. It is
// idempotent: an existing sink is reused, and a recorded handle for it is
// transferred to sessionID so that session's teardown releases it.
func (m *Manager) EnsureSink(ctx context.Context, sessionID string) error {
	exists, err := m.sinkExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		handle, err := m.ReadHandle()
		if err != nil {
			return err
		}
		logging.WarnWithContext(m.logger, "reserved sink already present; reusing", "sink_reused",
			logging.String("sink", m.opts.SinkName),
			logging.Bool("recorded", handle != nil),
			logging.String(logging.FieldErrorHint, "a previous session did not tear down cleanly"),
			logging.String(logging.FieldImpact, "none; existing sink is reused"),
		)
		if handle != nil && handle.SessionID != sessionID {
			handle.SessionID = sessionID
			if err := m.writeHandle(*handle); err != nil {
				return err
			}
		}
	} else {
		previous := m.defaultSink(ctx)
		moduleID, err := m.loadSink(ctx)
		if err != nil {
			return err
		}
		handle := Handle{
			ModuleID:        moduleID,
			SinkName:        m.opts.SinkName,
			SessionID:       sessionID,
			PreviousDefault: previous,
			CreatedAt:       m.now().UTC(),
		}
		if err := m.writeHandle(handle); err != nil {
			_, _ = m.run(ctx, m.opts.Binary, "unload-module", strconv.Itoa(moduleID))
			return err
		}
		m.logger.Info("virtual sink created",
			logging.String("sink", m.opts.SinkName),
			logging.Int("module_id", moduleID),
			logging.String(logging.FieldEventType, "sink_created"),
		)
	}

	if out, err := m.run(ctx, m.opts.Binary, "set-default-sink", m.opts.SinkName); err != nil {
		return services.Wrap(services.ErrAudioUnavailable, "pulseaudio", "set-default-sink", trimOutput(out), err)
	}
	return nil
}

// ReleaseSink unloads the sink recorded for sessionID and restores the
// previous default output. It is a no-op when no handle is recorded or the
// handle belongs to another session.
func (m *Manager) ReleaseSink(ctx context.Context, sessionID string) error {
	handle, err := m.ReadHandle()
	if err != nil {
		return err
	}
	if handle == nil {
		m.logger.Debug("no sink handle recorded; nothing to release")
		return nil
	}
	if handle.SessionID != sessionID {
		m.logger.Info("sink owned by another session; leaving it",
			logging.String("owner", handle.SessionID),
			logging.String(logging.FieldEventType, "sink_release_skipped"),
		)
		return nil
	}

	if handle.PreviousDefault != "" && handle.PreviousDefault != handle.SinkName {
		if out, err := m.run(ctx, m.opts.Binary, "set-default-sink", handle.PreviousDefault); err != nil {
			logging.WarnWithContext(m.logger, "restore default sink failed", "sink_restore_failed",
				logging.String("previous_default", handle.PreviousDefault),
				logging.Error(err),
				logging.String("output", trimOutput(out)),
				logging.String(logging.FieldErrorHint, "select the output device manually"),
				logging.String(logging.FieldImpact, "system audio stays routed to the capture sink"),
			)
		}
	}

	if out, err := m.run(ctx, m.opts.Binary, "unload-module", strconv.Itoa(handle.ModuleID)); err != nil {
		exists, probeErr := m.sinkExists(ctx)
		if probeErr != nil || exists {
			return services.Wrap(services.ErrAudioUnavailable, "pulseaudio", "unload-module", trimOutput(out), err)
		}
		m.logger.Info("sink module already gone", logging.Int("module_id", handle.ModuleID))
	}

	if err := os.Remove(m.opts.RecordPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove sink record: %w", err)
	}
	m.logger.Info("virtual sink released",
		logging.Int("module_id", handle.ModuleID),
		logging.String(logging.FieldEventType, "sink_released"),
	)
	return nil
}

// ReadHandle loads the persisted sink handle. A missing record returns nil.
func (m *Manager) ReadHandle() (*Handle, error) {
	data, err := os.ReadFile(m.opts.RecordPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sink record: %w", err)
	}
	var handle Handle
	if err := json.Unmarshal(data, &handle); err != nil {
		return nil, fmt.Errorf("decode sink record: %w", err)
	}
	return &handle, nil
}

func (m *Manager) writeHandle(handle Handle) error {
	if err := fileutil.WriteJSONAtomic(m.opts.RecordPath, handle); err != nil {
		return fmt.Errorf("write sink record: %w", err)
	}
	return nil
}

func (m *Manager) sinkExists(ctx context.Context) (bool, error) {
	out, err := m.run(ctx, m.opts.Binary, "list", "short", "sinks")
	if err != nil {
		return false, services.Wrap(services.ErrAudioUnavailable, "pulseaudio", "list sinks", trimOutput(out), err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == m.opts.SinkName {
			return true, nil
		}
	}
	return false, nil
}

func (m *Manager) defaultSink(ctx context.Context) string {
	out, err := m.run(ctx, m.opts.Binary, "get-default-sink")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func (m *Manager) loadSink(ctx context.Context) (int, error) {
	args := []string{
		"load-module", "module-null-sink",
		"sink_name=" + m.opts.SinkName,
		"rate=" + strconv.Itoa(m.opts.SampleRate),
		"channels=" + strconv.Itoa(m.opts.Channels),
		"format=" + m.opts.Format,
		"sink_properties=device.description=" + m.opts.SinkName,
	}
	out, err := m.run(ctx, m.opts.Binary, args...)
	if err != nil {
		return 0, services.Wrap(services.ErrAudioUnavailable, "pulseaudio", "load-module", trimOutput(out), err)
	}
	id, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		return 0, services.Wrap(services.ErrAudioUnavailable, "pulseaudio", "load-module", "unexpected module index "+strconv.Quote(trimOutput(out)), err)
	}
	return id, nil
}

func trimOutput(out []byte) string {
	return strings.TrimSpace(string(out))
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return stderr.Bytes(), err
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}
