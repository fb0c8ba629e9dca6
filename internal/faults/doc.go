// Package faults defines the launcher's error taxonomy.
//
// Every failure that can end a startup run is tagged with exactly one marker so
// the orchestrator, the progress surface and the logs classify it the same way.
// Callers test with errors.Is and use Describe to produce user-facing text.
package faults
