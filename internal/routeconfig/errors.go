package routeconfig

import "fmt"

// IOError reports a path that could not be read or written.
type IOError struct {
	Op   string // "read" or "write"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FormatError reports content that is not a JSON object under either the
// tolerant or the strict reading.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return "invalid route configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid route configuration: %s: %v", e.Reason, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }
