// Package startup sequences a launch: application home, database engine
// install, engine start and health check, data bundles, then the worker and
// the main interface.
//
// Orchestrator runs the stages strictly in order, each advancing only on
// success. The first error from any stage, or from the engine exiting at any
// later point, moves the machine to StateFailed: the error is reported once
// through the progress channel and the process tree is reaped. Activate
// handles re-entry once ready by relaunching only what is missing.
package startup
