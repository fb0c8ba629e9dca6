// Package proctree owns the lifecycle of processes the launcher spawns and the
// teardown of everything they leave behind.
//
// Start wraps exec.Cmd in a Handle whose exit is observed on a goroutine and
// reported through a callback unless the exit was requested. ReapTree walks the
// OS process table through a platform Lister, selects descendants of a root pid
// that match the service or worker signature, and terminates them, escalating
// to a forced kill after a grace period. Matching is platform independent; only
// enumeration and signalling live in per-OS files.
package proctree
