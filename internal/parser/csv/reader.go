// Package csv reads a delimited trip file as a sequence of fixed-size
// batches.
//
// The header is read once and canonicalized (see NormalizeHeaderName and
// DefaultAliases). Records are then grouped into batches of Options.ChunkSize
// rows in file order. A malformed record does not stop the stream: the chunk
// that contains it is consumed to its normal size and reported as a
// *ParseError, and the next call to Next starts at the following chunk.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/zeebo/xxh3"
)

// DefaultChunkSize is the number of rows per batch when Options.ChunkSize is
// not set.
const DefaultChunkSize = 20000

// Options configures a BatchReader. Zero values get defaults.
type Options struct {
	// ChunkSize is the number of rows per batch (default 20000).
	ChunkSize int

	// Comma is the field delimiter (default ',').
	Comma rune

	// TrimSpace trims leading and trailing white space from every field.
	TrimSpace bool

	// Aliases maps normalized header names to canonical ones. When nil,
	// DefaultAliases is used.
	Aliases map[string]string
}

// Row is one source record.
type Row struct {
	Line   int
	Fields []string
}

// Batch is a contiguous slice of source rows.
type Batch struct {
	Index       int // 1-based
	FirstLine   int
	Rows        []Row
	Fingerprint uint64
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int { return len(b.Rows) }

// FingerprintHex returns the fingerprint as 16 hex digits.
func (b *Batch) FingerprintHex() string { return fmt.Sprintf("%016x", b.Fingerprint) }

// BatchReader yields batches from a CSV stream. It is not safe for
// concurrent use.
type BatchReader struct {
	cr        *csv.Reader
	opt       Options
	header    []string
	rawHeader []string
	index     int
	done      bool
}

// NewBatchReader reads and canonicalizes the header from r. A missing header
// or one without a pickup column is returned as a *ParseError with Chunk ==
// HeaderChunk.
func NewBatchReader(r io.Reader, opt Options) (*BatchReader, error) {
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = DefaultChunkSize
	}
	if opt.Comma == 0 {
		opt.Comma = ','
	}
	if opt.Aliases == nil {
		opt.Aliases = DefaultAliases
	}

	cr := csv.NewReader(r)
	cr.Comma = opt.Comma
	// Width is checked against the header below so one bad row does not
	// poison the reader's notion of the expected field count.
	cr.FieldsPerRecord = -1

	raw, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = ErrNoHeader
		}
		return nil, &ParseError{Chunk: HeaderChunk, Line: 1, Err: err}
	}
	header := canonicalHeader(raw, opt.Aliases)
	if indexOf(header, "pickup_datetime") < 0 {
		return nil, &ParseError{Chunk: HeaderChunk, Line: 1, Err: ErrNoPickupColumn}
	}

	return &BatchReader{
		cr:        cr,
		opt:       opt,
		header:    header,
		rawHeader: append([]string(nil), raw...),
	}, nil
}

// Header returns the canonical column names in source order.
func (br *BatchReader) Header() []string { return br.header }

// RawHeader returns the header cells as they appeared in the file.
func (br *BatchReader) RawHeader() []string { return br.rawHeader }

// ChunkSize returns the effective rows-per-batch.
func (br *BatchReader) ChunkSize() int { return br.opt.ChunkSize }

// Next returns the next batch, or io.EOF when the input is exhausted. A
// *ParseError means the chunk was skipped and Next may be called again; any
// other error is fatal.
func (br *BatchReader) Next(ctx context.Context) (*Batch, error) {
	if br.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br.index++
	b := &Batch{Index: br.index, Rows: make([]Row, 0, min(br.opt.ChunkSize, 4096))}
	var perr *ParseError
	consumed, lastLine := 0, 0

	for consumed < br.opt.ChunkSize {
		rec, err := br.cr.Read()
		if errors.Is(err, io.EOF) {
			br.done = true
			break
		}
		if err != nil {
			var cerr *csv.ParseError
			if !errors.As(err, &cerr) {
				return nil, fmt.Errorf("csv read chunk %d: %w", br.index, err)
			}
			consumed++
			lastLine = cerr.Line
			if perr == nil {
				perr = &ParseError{Chunk: br.index, Line: cerr.StartLine, Err: cerr}
			}
			continue
		}
		consumed++
		line, _ := br.cr.FieldPos(0)
		lastLine, _ = br.cr.FieldPos(len(rec) - 1)
		if b.FirstLine == 0 {
			b.FirstLine = line
		}
		if len(rec) != len(br.header) {
			if perr == nil {
				perr = &ParseError{
					Chunk: br.index,
					Line:  line,
					Err:   fmt.Errorf("incorrect number of fields (expected %d, got %d)", len(br.header), len(rec)),
				}
			}
			continue
		}
		if perr != nil {
			continue
		}
		if br.opt.TrimSpace {
			for i, v := range rec {
				rec[i] = strings.TrimSpace(v)
			}
		}
		b.Rows = append(b.Rows, Row{Line: line, Fields: rec})
	}

	if perr != nil {
		perr.Rows = consumed
		perr.EndLine = max(lastLine, perr.Line)
		return nil, perr
	}
	if consumed == 0 {
		return nil, io.EOF
	}
	b.Fingerprint = fingerprint(b.Rows)
	return b, nil
}

// Batches returns an iterator over the remaining batches. Chunk-level
// *ParseError values are yielded with a nil batch and iteration continues;
// iteration stops after any other error.
func (br *BatchReader) Batches(ctx context.Context) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		for {
			b, err := br.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(b, err) {
				return
			}
			var pe *ParseError
			if err != nil && !errors.As(err, &pe) {
				return
			}
		}
	}
}

// fingerprint hashes the batch content so a failed batch can be identified
// later without storing its rows.
func fingerprint(rows []Row) uint64 {
	h := xxh3.New()
	for _, r := range rows {
		for _, f := range r.Fields {
			_, _ = h.Write([]byte(f))
			_, _ = h.Write([]byte{0x1f})
		}
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}
