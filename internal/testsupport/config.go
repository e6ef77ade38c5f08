package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meetwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Timing knobs are shrunk so join and stop loops finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MeetingsDir = filepath.Join(base, "meetings")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Transcription.BaseURL = "http://127.0.0.1:1"
	cfgVal.Automation.PageSettleMS = 0
	cfgVal.Automation.PollIntervalMS = 1
	cfgVal.Pipeline.StopGraceSeconds = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithTranscriptionURL points the transcription client at a test server.
func WithTranscriptionURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.BaseURL = url
	}
}

// WithChunkDuration overrides the audio chunk length.
func WithChunkDuration(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Audio.ChunkDurationMS = ms
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends them to PATH. If names is empty, the default meetwatch
// external binaries are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"pactl", "parec", b.cfg.Automation.Command}
		}
		for _, name := range names {
			writeStub(b, name, "exit 0\n")
		}
	}
}

// WithStubScript writes a stub executable with the given shell body and
// prepends its directory to PATH.
func WithStubScript(name, body string) ConfigOption {
	return func(b *configBuilder) {
		writeStub(b, name, body)
	}
}

func writeStub(b *configBuilder, name, body string) {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}

	oldPath := os.Getenv("PATH")
	if strings.HasPrefix(oldPath, binDir+string(os.PathListSeparator)) {
		return
	}
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		b.t.Fatalf("set PATH: %v", err)
	}
	b.t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
