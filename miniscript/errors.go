package miniscript

import "fmt"

// ParseError is returned by FromScript when a token stream does not match
// any known Miniscript fragment template.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("miniscript: parse error: %s", e.Reason)
}

func errf(format string, args ...interface{}) error {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}
