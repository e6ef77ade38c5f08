// Package notifications pushes meeting events to ntfy.
//
// The service publishes to the topic URL configured under [notifications] and
// degrades to a no-op when no topic is set. Events cover the moments an
// operator cares about while away from the terminal: the bot got into a call,
// somebody addressed it, and the session ended. With mentions_only set, only
// mention and question events are delivered.
//
// Callers depend on the small Service interface so tests can substitute a
// recorder.
package notifications
