// Package meeting orchestrates one meeting session end to end.
//
// Join drives the accessibility automation from a meeting link to a
// confirmed in-call state, reserves the capture sink, records the session, and
// launches the background transcriber. Leave reverses those steps with each
// step tolerating the failure of the others, so repeated invocations converge.
// Chat posts a message into the running call, and Status reports what the
// session files and the process record say about the current session.
//
// Join and Leave serialize on a host-wide file lock; they are the only writers
// of the current-session pointer and the session index.
package meeting
