// Package worker resolves and launches the backend worker process.
//
// A packaged install ships the worker as an executable under the app's dist
// directory; a source checkout runs the worker script through an interpreter.
// Resolve picks the mode from what exists on disk and Launcher spawns it with
// no arguments. The worker has no health check.
package worker
