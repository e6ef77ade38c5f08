package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateAutomation(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSession() error {
	if _, err := regexp.Compile(c.Session.URLPattern); err != nil {
		return fmt.Errorf("session.url_pattern: %w", err)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	parsed, err := url.Parse(c.Transcription.BaseURL)
	if err != nil {
		return fmt.Errorf("transcription.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("transcription.base_url must use http or https, got %q", c.Transcription.BaseURL)
	}
	if parsed.Host == "" {
		return errors.New("transcription.base_url must include a host")
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.SampleRate <= 0 {
		return errors.New("audio.sample_rate must be positive")
	}
	if c.Audio.Channels <= 0 || c.Audio.Channels > 8 {
		return errors.New("audio.channels must be between 1 and 8")
	}
	if BytesPerSample(c.Audio.Format) == 0 {
		return fmt.Errorf("audio.format %q unsupported (supported: %s)", c.Audio.Format, supportedAudioFormatsLabel)
	}
	if c.Audio.ChunkDurationMS < 500 {
		return errors.New("audio.chunk_duration_ms must be at least 500")
	}
	if c.Audio.MinChunkRatio < 0 || c.Audio.MinChunkRatio > 1 {
		return errors.New("audio.min_chunk_ratio must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateAutomation() error {
	if c.Automation.Command == "" {
		return errors.New("automation.command must be set")
	}
	if c.Automation.PageSettleMS < 0 {
		return errors.New("automation.page_settle_ms must be >= 0")
	}
	if c.Automation.PollIntervalMS <= 0 {
		return errors.New("automation.poll_interval_ms must be positive")
	}
	if c.Automation.JoinAttempts <= 0 {
		return errors.New("automation.join_attempts must be positive")
	}
	if len(c.Automation.JoinButtons) == 0 {
		return errors.New("automation.join_buttons must list at least one button")
	}
	if len(c.Automation.JoinedSignals) == 0 {
		return errors.New("automation.joined_signals must list at least one element")
	}
	if len(c.Automation.LeaveButtons) == 0 {
		return errors.New("automation.leave_buttons must list at least one button")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.StopGraceSeconds <= 0 {
		return errors.New("pipeline.stop_grace_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) topic URL, got %q", c.Notifications.NtfyTopic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q unsupported (console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q unsupported", c.Logging.Level)
	}
	return nil
}

// BytesPerSample returns the sample width for a PulseAudio sample format name,
// or 0 when the format is not supported for capture.
func BytesPerSample(format string) int {
	switch format {
	case "s16le":
		return 2
	case "s32le":
		return 4
	default:
		return 0
	}
}
