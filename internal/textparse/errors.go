package textparse

import "fmt"

// ParseError reports non-empty input that contains no table definition.
type ParseError struct {
	Lines int
	Msg   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse: %s (%d lines read)", e.Msg, e.Lines)
}
