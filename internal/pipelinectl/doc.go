// Package pipelinectl launches, inspects, and stops the detached background
// transcriber process.
//
// The process is tracked through a JSON record in the state directory rather
// than a parent/child relationship, because the command that starts it exits
// immediately. Liveness is probed with signal 0 plus a zombie check, so a
// stale record whose process died reads as stopped instead of failing.
package pipelinectl
