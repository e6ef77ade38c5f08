package preflight

import (
	"context"

	"meetwatch/internal/config"
	"meetwatch/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// HealthChecker probes the transcription endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// RunAll executes every check for cfg. health may be nil to skip the
// transcription probe.
func RunAll(ctx context.Context, cfg *config.Config, health HealthChecker) []Result {
	if cfg == nil {
		return nil
	}
	results := CheckDirectories(cfg)
	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, FromDependency(status))
	}
	if health != nil {
		results = append(results, CheckTranscription(ctx, cfg.Transcription.BaseURL, health))
	}
	return results
}

// CheckDirectories verifies the meetings, state, and log directories.
func CheckDirectories(cfg *config.Config) []Result {
	return []Result{
		CheckDirectoryAccess("Meetings directory", cfg.Paths.MeetingsDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
}

// CheckSystemDeps evaluates the executables join, leave, and the transcriber
// shell out to.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "pactl",
			Command:     cfg.PulseBinary(),
			Description: "Required to create and release the capture sink",
		},
		{
			Name:        "parec",
			Command:     cfg.CaptureBinary(),
			Description: "Required to record the capture sink monitor",
		},
		{
			Name:        "Automation driver",
			Command:     cfg.Automation.Command,
			Description: "Required to drive the meeting page",
		},
	})
}

// FromDependency converts a dependency status into a check result.
func FromDependency(status deps.Status) Result {
	detail := status.Path
	if !status.Available {
		detail = status.Detail
	}
	return Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: detail}
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
