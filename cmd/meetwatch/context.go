package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"meetwatch/internal/config"
	"meetwatch/internal/logging"
	"meetwatch/internal/meeting"
	"meetwatch/internal/notifications"
	"meetwatch/internal/pipelinectl"
	"meetwatch/internal/registry"
	"meetwatch/internal/services"
	"meetwatch/internal/services/automation"
	"meetwatch/internal/services/pulseaudio"
	"meetwatch/internal/services/speaches"
	"meetwatch/internal/session"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger

	index   *registry.Store
	closers []func()
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

// commandLogger returns the shared foreground logger. Construction failures
// fall back to stderr-only logging.
func (c *commandContext) commandLogger() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, _ := c.ensureConfig()
		verbose := c.verbose != nil && *c.verbose
		logger, err := logging.NewFromConfig(cfg, verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log setup failed, using stderr: %v\n", err)
			logger, _ = logging.New(logging.Options{Level: "info", Format: "console"})
		}
		c.logger = logger
		if cfg != nil {
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, cfg.Paths.LogDir, logging.CommandLogPattern,
				logging.CommandLogPath(cfg.Paths.LogDir, timeNow()))
		}
	})
	return c.logger
}

// commandScope tags ctx with the command name and a fresh correlation id.
func (c *commandContext) commandScope(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithCommand(ctx, cmd.Name())
	return services.WithRequestID(ctx, uuid.NewString())
}

func (c *commandContext) sessionStore() *session.Store {
	return session.NewStore(c.config.Paths.MeetingsDir)
}

func (c *commandContext) supervisor() *pipelinectl.Supervisor {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return pipelinectl.New(pipelinectl.Options{
		RecordPath: c.config.PIDRecordPath(),
		Executable: exe,
		ConfigPath: c.configPath,
		Grace:      c.config.StopGrace(),
	}, c.commandLogger())
}

func (c *commandContext) transcriptionClient() *speaches.Client {
	t := c.config.Transcription
	return speaches.New(speaches.Config{
		BaseURL:    t.BaseURL,
		Model:      t.Model,
		APIKey:     t.APIKey,
		Language:   t.Language,
		HealthPath: t.HealthPath,
	})
}

func (c *commandContext) audioManager() *pulseaudio.Manager {
	a := c.config.Audio
	return pulseaudio.NewManager(pulseaudio.Options{
		Binary:     c.config.PulseBinary(),
		SinkName:   a.SinkName,
		SampleRate: a.SampleRate,
		Channels:   a.Channels,
		Format:     a.Format,
		RecordPath: c.config.SinkRecordPath(),
	}, c.commandLogger())
}

// registry opens the session index lazily. The index is advisory, so an open
// failure is logged and nil returned.
func (c *commandContext) registry() *registry.Store {
	if c.index != nil {
		return c.index
	}
	store, err := registry.Open(c.config.RegistryPath())
	if err != nil {
		logging.WarnWithContext(c.commandLogger(), "session index unavailable", "registry_open_failed",
			logging.String("path", c.config.RegistryPath()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the registry file if its schema is outdated"),
			logging.String(logging.FieldImpact, "meetwatch list falls back to session directories"),
		)
		return nil
	}
	c.index = store
	c.closers = append(c.closers, func() { _ = store.Close() })
	return store
}

func (c *commandContext) meetingService() *meeting.Service {
	deps := meeting.Dependencies{
		Store:        c.sessionStore(),
		Driver:       automation.NewCLI(c.config.Automation.Command),
		Audio:        c.audioManager(),
		Transcribers: c.supervisor(),
		Health:       c.transcriptionClient(),
		Notifier:     notifications.NewService(c.config),
	}
	if index := c.registry(); index != nil {
		deps.Index = index
	}
	return meeting.New(c.config, deps, c.commandLogger())
}

func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
	c.index = nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
