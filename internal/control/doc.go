// Package control exposes a running launcher on a loopback HTTP address.
//
// The server streams progress events over a websocket at /events (replaying
// the buffered backlog first), accepts POST /activate to relaunch whatever is
// missing, and reports the orchestrator state at /state. Client is the resty
// based counterpart used by a second launch to hand off to the first.
package control
