// Package download fetches remote archives to local files.
//
// Bodies are streamed straight to disk. Redirects are chased by an explicit,
// bounded loop rather than by the HTTP client so the hop count is observable
// and capped. Payloads land in a sibling ".part" file that is renamed into
// place only after the body has been fully written.
package download
