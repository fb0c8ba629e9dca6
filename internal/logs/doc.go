// Package logs reads the launcher's log files for the logs command.
//
// Last returns the final lines of a file with bounded memory and the offset
// just past them; Follow polls from an offset and hands each new complete
// line to a callback until the context ends. Lines from the JSON launcher log
// can be narrowed to one launch with SessionFilter.
package logs
