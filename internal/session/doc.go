// Package session persists meeting sessions on disk so independent process
// invocations (join, status, leave, the background transcriber) share state.
//
// Each session owns a directory under meetings_dir holding metadata.json,
// transcript.txt, and mentions.txt. A "current" symlink names the active
// session; a link whose target is missing or no longer active reads as no
// current session.
package session
