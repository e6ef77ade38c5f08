package services

import (
	"errors"
	"fmt"
	"strings"
)

// Marker errors classify failures so callers can decide between aborting a
// command, logging and continuing, or surfacing the problem through status.
var (
	ErrValidation       = errors.New("validation error")
	ErrPrecondition     = errors.New("precondition failed")
	ErrTransientUI      = errors.New("ui element unavailable")
	ErrResourceConflict = errors.New("resource conflict")
	ErrBackground       = errors.New("background failure")
)

// Specific failures. Each wraps one of the markers above.
var (
	ErrInvalidURL               = fmt.Errorf("%w: meeting url does not match the expected link pattern", ErrValidation)
	ErrAutomationUnavailable    = fmt.Errorf("%w: accessibility automation unavailable", ErrPrecondition)
	ErrAudioUnavailable         = fmt.Errorf("%w: audio subsystem unavailable", ErrPrecondition)
	ErrNotInCall                = fmt.Errorf("%w: not in a call", ErrPrecondition)
	ErrTranscriptionUnavailable = fmt.Errorf("%w: transcription endpoint unavailable", ErrBackground)
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker. The marker may be one of the sentinels above or a
// specific failure built from them.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrBackground
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err must abort the foreground command. Transient UI
// misses and resource conflicts are resolved in place and only logged.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransientUI) || errors.Is(err, ErrResourceConflict) {
		return false
	}
	return true
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{component, operation, message} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
