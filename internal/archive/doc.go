// Package archive unpacks downloaded distributions into the application home.
//
// Zip archives are read through their central directory and gzip-compressed
// tarballs as a single forward stream. Either way entries are written strictly
// one at a time, so at most one entry reader and one output file are open
// regardless of archive size. Every entry failure surfaces as a
// faults.EntryError naming the entry.
package archive
