package caption

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedContainer is returned when the container structure is invalid:
	// wrong magic or version, truncated header, or a range outside the buffer.
	ErrMalformedContainer = errors.New("caption: malformed container")

	// ErrEncoding is returned when a caption string is not valid UTF-16LE.
	ErrEncoding = errors.New("caption: invalid text encoding")
)

// FormatError describes a single structural violation in a container.
// It unwraps to ErrMalformedContainer or ErrEncoding.
type FormatError struct {
	Field  string // header field or "entry[i]" style locator
	Offset int64  // byte offset of the violation, -1 when not applicable
	Want   string
	Got    string
	Err    error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%v: %s", e.Err, e.Field)
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset 0x%X", e.Offset)
	}
	switch {
	case e.Want != "" && e.Got != "":
		msg += fmt.Sprintf(": expected %s, got %s", e.Want, e.Got)
	case e.Got != "":
		msg += ": " + e.Got
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

func malformed(field string, offset int64, want, got string) error {
	return &FormatError{
		Field:  field,
		Offset: offset,
		Want:   want,
		Got:    got,
		Err:    ErrMalformedContainer,
	}
}

func badEncoding(field string, offset int64, got string) error {
	return &FormatError{
		Field:  field,
		Offset: offset,
		Got:    got,
		Err:    ErrEncoding,
	}
}
