// Package services defines shared utilities consumed by the meeting controller,
// the background transcriber, and the external integrations beneath it.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, command names, and correlation
//     identifiers for logging.
//   - Marker errors plus the Wrap helper that separate fatal preconditions from
//     UI misses and resource conflicts that are resolved in place.
//
// Use these helpers when wiring new integrations so error handling and
// observability stay uniform across commands.
package services
