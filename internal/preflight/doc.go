// Package preflight provides readiness checks for the launcher's home
// directory, executables, data bundles and database port.
//
// The CLI "tessera status" command runs RunAll and renders the results; each
// check is independent, so one failure never hides the rest.
package preflight
