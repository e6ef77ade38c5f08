// Package config loads, normalizes, and validates meetwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEETWATCH_TRANSCRIPTION_API_KEY. The Config type centralizes every knob the
// CLI and the background transcriber need: meeting and state directories,
// the speech-to-text endpoint, virtual sink parameters, and the accessibility
// element names probed while driving the meeting page.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
