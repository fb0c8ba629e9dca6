// Package main hosts the tessera launcher entrypoint and command graph.
//
// Running tessera with no subcommand launches the application: it takes the
// single-instance lock, provisions the database engine and data bundles,
// starts and verifies the engine, launches the worker and reveals the main
// interface. A second invocation finds the lock held and asks the running
// launcher to activate instead.
//
// The remaining commands are maintenance tools: provision installs resources
// without starting anything, status reports readiness and install history,
// reap tears down a leftover process tree and config scaffolds the TOML file.
// The heavy lifting lives in the internal packages; this package only wires
// them together.
package main
