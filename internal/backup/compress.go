package backup

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects the dump file encoding.
type Compression string

const (
	CompressNone Compression = "none"
	CompressGzip Compression = "gzip"
	CompressZstd Compression = "zstd"
)

// ParseCompression accepts "", "none", "gzip"/"gz" and "zstd"/"zst".
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressNone, nil
	case "gzip", "gz":
		return CompressGzip, nil
	case "zstd", "zst":
		return CompressZstd, nil
	default:
		return "", fmt.Errorf("unsupported compression %q (want none, gzip or zstd)", s)
	}
}

// Ext is the suffix appended after ".sql".
func (c Compression) Ext() string {
	switch c {
	case CompressGzip:
		return ".gz"
	case CompressZstd:
		return ".zst"
	default:
		return ""
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// newWriter wraps w with the encoder for c. Closing the result flushes the
// encoder but does not close w.
func newWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressNone, "":
		return nopWriteCloser{w}, nil
	case CompressGzip:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case CompressZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	default:
		return nil, fmt.Errorf("unsupported compression %q", c)
	}
}
