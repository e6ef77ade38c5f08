// Package automation drives the meeting page through an external
// accessibility command.
//
// The command implements click, list, type, key, and navigate verbs. A click
// that finds no matching element exits with status 1, which the driver reports
// as a miss rather than an error: the meeting UI is unreliable, so callers probe
// prioritized candidate lists and treat absences as normal values.
package automation
