package logparse

import "fmt"

const excerptLen = 20

// Error reports a parse failure at a byte offset of the input.
type Error struct {
	Offset  int
	Excerpt string
	Msg     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at byte %d: %s\nFound: %q...", e.Offset, e.Msg, e.Excerpt)
}

func (p *parser) errorf(format string, args ...any) error {
	end := min(p.pos+excerptLen, len(p.input))
	return &Error{
		Offset:  p.pos,
		Excerpt: p.input[p.pos:end],
		Msg:     fmt.Sprintf(format, args...),
	}
}
