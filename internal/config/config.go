package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	MeetingsDir string `toml:"meetings_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
}

// Session contains defaults applied when joining a meeting.
type Session struct {
	ParticipantName string `toml:"participant_name"`
	URLPattern      string `toml:"url_pattern"`
}

// Mentions contains keyword matching configuration for transcript lines.
type Mentions struct {
	Keywords        []string `toml:"keywords"`
	QuestionPhrases []string `toml:"question_phrases"`
}

// Transcription contains settings for the speech-to-text endpoint.
type Transcription struct {
	BaseURL    string `toml:"base_url"`
	Model      string `toml:"model"`
	APIKey     string `toml:"api_key"`
	Language   string `toml:"language"`
	HealthPath string `toml:"health_path"`
}

// Audio contains virtual sink and capture settings.
type Audio struct {
	SinkName        string  `toml:"sink_name"`
	SampleRate      int     `toml:"sample_rate"`
	Channels        int     `toml:"channels"`
	Format          string  `toml:"format"`
	ChunkDurationMS int     `toml:"chunk_duration_ms"`
	MinChunkRatio   float64 `toml:"min_chunk_ratio"`
}

// Automation contains the accessibility driver command and the UI element
// names probed while joining, chatting, and leaving.
type Automation struct {
	Command           string   `toml:"command"`
	PageSettleMS      int      `toml:"page_settle_ms"`
	PollIntervalMS    int      `toml:"poll_interval_ms"`
	JoinAttempts      int      `toml:"join_attempts"`
	DismissButtons    []string `toml:"dismiss_buttons"`
	CameraButtons     []string `toml:"camera_buttons"`
	MicrophoneButtons []string `toml:"microphone_buttons"`
	NameFields        []string `toml:"name_fields"`
	JoinButtons       []string `toml:"join_buttons"`
	JoinedSignals     []string `toml:"joined_signals"`
	JoinedRequireAll  bool     `toml:"joined_require_all"`
	LeaveButtons      []string `toml:"leave_buttons"`
	ChatInputs        []string `toml:"chat_inputs"`
	ChatOpenButtons   []string `toml:"chat_open_buttons"`
	SubmitKey         string   `toml:"submit_key"`
}

// Pipeline contains background transcriber process settings.
type Pipeline struct {
	StopGraceSeconds int  `toml:"stop_grace_seconds"`
	KeepChunks       bool `toml:"keep_chunks"`
	Metrics          bool `toml:"metrics"`
}

// Notifications contains ntfy push settings. An empty topic disables pushes.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	MentionsOnly   bool   `toml:"mentions_only"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for meetwatch.
//
// Configuration sections by subsystem:
//   - Paths: meeting, state, and log directories
//   - Session: participant defaults and the accepted meeting link pattern
//   - Mentions: keywords and question phrases flagged in transcripts
//   - Transcription: speech-to-text endpoint and model
//   - Audio: virtual sink and chunking parameters
//   - Automation: accessibility driver and UI element names
//   - Pipeline: background transcriber lifecycle
//   - Notifications: ntfy pushes for joins, mentions, and session ends
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Session       Session       `toml:"session"`
	Mentions      Mentions      `toml:"mentions"`
	Transcription Transcription `toml:"transcription"`
	Audio         Audio         `toml:"audio"`
	Automation    Automation    `toml:"automation"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/meetwatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("meetwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories every command relies on.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.MeetingsDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PulseBinary returns the PulseAudio control executable name.
func (c *Config) PulseBinary() string {
	return "pactl"
}

// CaptureBinary returns the PulseAudio recording executable name.
func (c *Config) CaptureBinary() string {
	return "parec"
}

// ChunkDuration returns the configured audio chunk length.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Audio.ChunkDurationMS) * time.Millisecond
}

// PollInterval returns the delay between join confirmation polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Automation.PollIntervalMS) * time.Millisecond
}

// PageSettle returns the delay after navigation before probing the page.
func (c *Config) PageSettle() time.Duration {
	return time.Duration(c.Automation.PageSettleMS) * time.Millisecond
}

// StopGrace returns how long a pipeline may take to exit after a stop signal.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Pipeline.StopGraceSeconds) * time.Second
}

// LockPath returns the path of the host-wide join/leave lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "meetwatch.lock")
}

// PIDRecordPath returns the path of the transcriber process record.
func (c *Config) PIDRecordPath() string {
	return filepath.Join(c.Paths.StateDir, "transcriber.pid")
}

// SinkRecordPath returns the path of the audio sink handle record.
func (c *Config) SinkRecordPath() string {
	return filepath.Join(c.Paths.StateDir, "sink.json")
}

// RegistryPath returns the path of the session registry database.
func (c *Config) RegistryPath() string {
	return filepath.Join(c.Paths.StateDir, "registry.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
