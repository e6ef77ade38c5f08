// Package main hosts the meetwatch CLI entrypoint and command graph.
//
// Every command is a short-lived process: join, leave, chat, and status talk
// to the meeting page through the automation driver and to each other only
// through the session files under meetings_dir and the records under
// state_dir. The hidden pipeline command is the detached transcriber that join
// launches; it is not meant to be run by hand.
//
// Keep this package lean: behaviour lives in internal/meeting and
// internal/pipeline, and commands here only wire collaborators and render
// results.
package main
