// Package speaches talks to a local OpenAI-compatible speech-to-text server.
//
// Transcription requests go through the openai-go SDK pointed at the server's
// /v1 prefix; the health probe is a plain GET against the configured path.
package speaches
