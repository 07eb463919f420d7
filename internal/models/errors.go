package models

import "fmt"

// UnsupportedFormatError is returned when neither the filename nor the
// content identify a known statement format.
type UnsupportedFormatError struct {
	Filename string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Filename == "" {
		return "unsupported statement format"
	}
	return fmt.Sprintf("unsupported statement format: %s", e.Filename)
}

// ParseError is returned when a file is in a recognised format but cannot be
// read: bad encoding, missing required columns, corrupt structure.
type ParseError struct {
	Format Format
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s parse error: %s", e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyStatementError is returned when a file parsed cleanly but yielded no
// usable transactions.
type EmptyStatementError struct {
	Format Format
}

func (e *EmptyStatementError) Error() string {
	return fmt.Sprintf("no transactions found in %s statement", e.Format)
}
