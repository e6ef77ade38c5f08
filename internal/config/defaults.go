package config

const (
	defaultMeetingsDir         = "~/meetings"
	defaultStateDir            = "~/.local/share/meetwatch"
	defaultParticipantName     = "Meeting Assistant"
	defaultURLPattern          = `^https://meet\.[a-z0-9.-]+/\S+$`
	defaultTranscriptionURL    = "http://localhost:8000"
	defaultTranscriptionModel  = "Systran/faster-distil-whisper-small.en"
	defaultHealthPath          = "/health"
	defaultSinkName            = "meetwatch_capture"
	defaultSampleRate          = 24000
	defaultChannels            = 1
	defaultAudioFormat         = "s16le"
	defaultChunkDurationMS     = 5000
	defaultMinChunkRatio       = 0.5
	defaultAutomationCommand   = "chrome-automation"
	defaultPageSettleMS        = 3000
	defaultPollIntervalMS      = 1000
	defaultJoinAttempts        = 60
	defaultSubmitKey           = "Return"
	defaultStopGraceSeconds    = 5
	defaultNtfyTimeoutSeconds  = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 30
	defaultLogDirName          = "logs"
	transcriptionAPIKeyEnv     = "MEETWATCH_TRANSCRIPTION_API_KEY"
	transcriptionURLEnv        = "MEETWATCH_TRANSCRIPTION_URL"
	meetingsDirEnv             = "MEETWATCH_MEETINGS_DIR"
	participantNameEnv         = "MEETWATCH_PARTICIPANT_NAME"
	ntfyTopicEnv               = "MEETWATCH_NTFY_TOPIC"
	supportedAudioFormatsLabel = "s16le, s32le"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			MeetingsDir: defaultMeetingsDir,
			StateDir:    defaultStateDir,
		},
		Session: Session{
			ParticipantName: defaultParticipantName,
			URLPattern:      defaultURLPattern,
		},
		Mentions: Mentions{
			Keywords: []string{"claude", "assistant", "ai"},
			QuestionPhrases: []string{
				"what do you think",
				"can you",
				"could you",
				"would you",
				"do you know",
				"what about",
				"hey claude",
				"hey assistant",
			},
		},
		Transcription: Transcription{
			BaseURL:    defaultTranscriptionURL,
			Model:      defaultTranscriptionModel,
			HealthPath: defaultHealthPath,
		},
		Audio: Audio{
			SinkName:        defaultSinkName,
			SampleRate:      defaultSampleRate,
			Channels:        defaultChannels,
			Format:          defaultAudioFormat,
			ChunkDurationMS: defaultChunkDurationMS,
			MinChunkRatio:   defaultMinChunkRatio,
		},
		Automation: Automation{
			Command:           defaultAutomationCommand,
			PageSettleMS:      defaultPageSettleMS,
			PollIntervalMS:    defaultPollIntervalMS,
			JoinAttempts:      defaultJoinAttempts,
			DismissButtons:    []string{"Got it", "Dismiss", "Not now", "No thanks", "Accept all", "I agree"},
			CameraButtons:     []string{"Turn off camera"},
			MicrophoneButtons: []string{"Turn off microphone"},
			NameFields:        []string{"Your name"},
			JoinButtons:       []string{"Ask to join", "Join now", "Join"},
			JoinedSignals:     []string{"Leave call"},
			LeaveButtons:      []string{"Leave call"},
			ChatInputs:        []string{"Send a message"},
			ChatOpenButtons:   []string{"Chat with everyone", "Open chat", "Chat"},
			SubmitKey:         defaultSubmitKey,
		},
		Pipeline: Pipeline{
			StopGraceSeconds: defaultStopGraceSeconds,
			Metrics:          true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
