// Package diag carries non-fatal diagnostics produced while parsing a DVR
// image. A Warning never aborts the operation that produced it.
package diag

// Code identifies the kind of non-fatal condition a Warning reports.
type Code string

// Warning codes emitted by the master and index parsers and the export run.
const (
	// CodeUnsupportedVersion means the master block's version string did
	// not match the one build known-good layout.
	CodeUnsupportedVersion Code = "unsupported_version"

	// CodeIndexOverrun means the HIKBTREE page chain exceeded the page
	// count guard before reaching END_OF_CHAIN.
	CodeIndexOverrun Code = "index_overrun"

	// CodeSegmentSkipped means one segment's data block could not be sliced,
	// its output sink could not be opened or closed, or carving it failed;
	// the segment was skipped and the remaining segments were still attempted.
	CodeSegmentSkipped Code = "segment_skipped"
)

// Warning is a single non-fatal diagnostic. The zero value is not valid;
// construct with New.
type Warning struct {
	Code    Code
	Message string
}

// New builds a Warning from a code and a formatted message.
func New(code Code, message string) Warning {
	return Warning{Code: code, Message: message}
}

func (w Warning) String() string {
	return w.Message
}
