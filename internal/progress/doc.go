// Package progress carries startup status from the orchestrator to whatever is
// displaying it.
//
// Channel is the one-way sender: Update appends a status line and Error
// reports the single terminal failure. Surfaces attach and detach at any time;
// with none attached, events only reach the log. Two surfaces ship here: a
// Terminal surface that prints lines with a busy indicator, and a Hub that
// buffers events with sequence numbers so late subscribers (the websocket
// endpoint, the desktop window) can replay the backlog.
package progress
