// Package pulseaudio manages the reserved virtual output sink that meeting
// audio is routed through for capture.
//
// The sink is a module-null-sink loaded through pactl. Its module index is
// persisted in a handle record owned by one session so that a later process,
// for example the leave command, can unload exactly what was created and
// nothing else.
package pulseaudio
