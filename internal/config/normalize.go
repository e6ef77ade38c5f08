package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSession()
	c.normalizeMentions()
	c.normalizeTranscription()
	c.normalizeAudio()
	c.normalizeAutomation()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(meetingsDirEnv); ok && strings.TrimSpace(value) != "" {
		c.Paths.MeetingsDir = value
	}
	if strings.TrimSpace(c.Paths.MeetingsDir) == "" {
		c.Paths.MeetingsDir = defaultMeetingsDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}

	var err error
	if c.Paths.MeetingsDir, err = expandPath(strings.TrimSpace(c.Paths.MeetingsDir)); err != nil {
		return fmt.Errorf("paths.meetings_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, defaultLogDirName)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSession() {
	if value, ok := os.LookupEnv(participantNameEnv); ok && strings.TrimSpace(value) != "" {
		c.Session.ParticipantName = value
	}
	c.Session.ParticipantName = strings.TrimSpace(c.Session.ParticipantName)
	if c.Session.ParticipantName == "" {
		c.Session.ParticipantName = defaultParticipantName
	}
	c.Session.URLPattern = strings.TrimSpace(c.Session.URLPattern)
	if c.Session.URLPattern == "" {
		c.Session.URLPattern = defaultURLPattern
	}
}

func (c *Config) normalizeMentions() {
	c.Mentions.Keywords = cleanList(c.Mentions.Keywords)
	c.Mentions.QuestionPhrases = cleanList(c.Mentions.QuestionPhrases)
}

func (c *Config) normalizeTranscription() {
	if c.Transcription.APIKey == "" {
		if value, ok := os.LookupEnv(transcriptionAPIKeyEnv); ok {
			c.Transcription.APIKey = value
		}
	}
	if value, ok := os.LookupEnv(transcriptionURLEnv); ok && strings.TrimSpace(value) != "" {
		c.Transcription.BaseURL = value
	}
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscriptionURL
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	c.Transcription.Language = strings.TrimSpace(c.Transcription.Language)
	c.Transcription.HealthPath = strings.TrimSpace(c.Transcription.HealthPath)
	if c.Transcription.HealthPath == "" {
		c.Transcription.HealthPath = defaultHealthPath
	}
	if !strings.HasPrefix(c.Transcription.HealthPath, "/") {
		c.Transcription.HealthPath = "/" + c.Transcription.HealthPath
	}
}

func (c *Config) normalizeAudio() {
	c.Audio.SinkName = strings.TrimSpace(c.Audio.SinkName)
	if c.Audio.SinkName == "" {
		c.Audio.SinkName = defaultSinkName
	}
	c.Audio.Format = strings.ToLower(strings.TrimSpace(c.Audio.Format))
	if c.Audio.Format == "" {
		c.Audio.Format = defaultAudioFormat
	}
}

func (c *Config) normalizeAutomation() {
	c.Automation.Command = strings.TrimSpace(c.Automation.Command)
	c.Automation.SubmitKey = strings.TrimSpace(c.Automation.SubmitKey)
	if c.Automation.SubmitKey == "" {
		c.Automation.SubmitKey = defaultSubmitKey
	}
	c.Automation.DismissButtons = cleanList(c.Automation.DismissButtons)
	c.Automation.CameraButtons = cleanList(c.Automation.CameraButtons)
	c.Automation.MicrophoneButtons = cleanList(c.Automation.MicrophoneButtons)
	c.Automation.NameFields = cleanList(c.Automation.NameFields)
	c.Automation.JoinButtons = cleanList(c.Automation.JoinButtons)
	c.Automation.JoinedSignals = cleanList(c.Automation.JoinedSignals)
	c.Automation.LeaveButtons = cleanList(c.Automation.LeaveButtons)
	c.Automation.ChatInputs = cleanList(c.Automation.ChatInputs)
	c.Automation.ChatOpenButtons = cleanList(c.Automation.ChatOpenButtons)
}

func (c *Config) normalizeNotifications() {
	if value, ok := os.LookupEnv(ntfyTopicEnv); ok {
		c.Notifications.NtfyTopic = value
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

// cleanList trims entries and drops blanks and duplicates while keeping order.
func cleanList(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
