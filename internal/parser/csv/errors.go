package csv

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHeader is returned when the input has no header line.
	ErrNoHeader = errors.New("csv: missing header")
	// ErrNoPickupColumn is returned when no header column maps to
	// pickup_datetime.
	ErrNoPickupColumn = errors.New("csv: header has no pickup_datetime column")
)

// HeaderChunk is the Chunk value of a ParseError raised while reading the
// header. Such errors make the whole resource unusable.
const HeaderChunk = -1

// ParseError reports a structural problem in one chunk: a field-count
// mismatch or malformed quoting. The chunk is skipped; the reader is left at
// the start of the next chunk.
type ParseError struct {
	Chunk int // batch index, or HeaderChunk
	Line  int // source line of the first offending record
	// EndLine is the last source line consumed by the skipped chunk. An
	// unterminated quote can swallow many lines into one record, so it may be
	// far past Line + Rows.
	EndLine int
	Rows    int // records consumed by the skipped chunk
	Err     error
}

func (e *ParseError) Error() string {
	if e.Chunk == HeaderChunk {
		return fmt.Sprintf("csv header line %d: %v", e.Line, e.Err)
	}
	if e.EndLine > e.Line {
		return fmt.Sprintf("csv chunk %d lines %d-%d (%d rows skipped): %v", e.Chunk, e.Line, e.EndLine, e.Rows, e.Err)
	}
	return fmt.Sprintf("csv chunk %d line %d (%d rows skipped): %v", e.Chunk, e.Line, e.Rows, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsHeaderError reports whether err is a ParseError raised for the header.
func IsHeaderError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Chunk == HeaderChunk
}
