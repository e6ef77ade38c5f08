// Package pipeline is the capture-transcribe loop run by the detached
// background process.
//
// A single goroutine reads raw PCM from the capture sink's monitor, splits it
// into fixed-duration chunks, wraps each chunk as WAV, and submits it to the
// transcription endpoint before reading the next. Results are appended to the
// session transcript in submission order and scanned for mentions. A failed
// chunk is dropped and the loop moves on.
package pipeline
