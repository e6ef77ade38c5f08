// Package registry indexes meeting sessions in a SQLite database so history
// queries do not have to walk every session directory.
//
// The session files under meetings_dir stay authoritative; the registry is
// written by join and leave only and can be deleted and rebuilt at any time.
package registry
