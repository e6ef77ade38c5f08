// Package logging assembles structured slog loggers and formatting helpers used
// across meetwatch commands and the background transcriber.
//
// It owns the console/JSON handlers, centralizes level and output plumbing, and
// exposes context-aware helpers so code can tag log lines with session IDs,
// command names, and correlation IDs. Warnings go through WarnWithContext so
// every one carries an event type, a hint, and the user-facing impact.
package logging
