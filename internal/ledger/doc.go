// Package ledger persists a history of completed installs in SQLite.
//
// The provisioner appends one row each time a resource is actually fetched and
// unpacked; satisfied resources never touch the ledger. The status command reads
// it back to show when and from where each resource was installed.
package ledger
