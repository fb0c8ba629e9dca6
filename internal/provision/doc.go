// Package provision makes sure a resource (the service distribution or a data
// bundle) exists under the application home.
//
// A Target is satisfied when its check path exists; satisfied targets are
// returned without touching the network, the archive or the ledger. Otherwise
// the archive is downloaded when absent, extracted, and its top-level directory
// renamed into the final install path. Every error is tagged with the target id.
package provision
