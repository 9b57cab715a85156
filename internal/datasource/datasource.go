// Package datasource resolves a CSV location (local path or http(s) URL) into
// a readable stream.
//
// Remote files are downloaded to a temporary file first and read from disk,
// so a long load never holds an HTTP response open. The temporary file is
// removed when the returned reader is closed unless KeepDownload is set.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/datasource/file"
	"github.com/Altaf-Khan-Jk/Database-Automation/internal/datasource/httpds"
)

// Source opens a stream of bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FetchError reports an unreachable or unusable resource. It is fatal for a
// run.
type FetchError struct {
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is or wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Options configures Open.
type Options struct {
	// Client downloads remote locations. A default client is built when nil.
	Client *httpds.Client
	// DownloadDir receives downloaded files; os.TempDir() when empty.
	DownloadDir string
	// KeepDownload leaves the downloaded file on disk after Close.
	KeepDownload bool
	Logger       *zap.Logger
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	default:
		return false
	}
}

// Open resolves location and returns a reader positioned at its first byte.
// Every failure is returned as a *FetchError.
func Open(ctx context.Context, location string, opt Options) (io.ReadCloser, error) {
	if strings.TrimSpace(location) == "" {
		return nil, &FetchError{Location: location, Err: errors.New("empty location")}
	}
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if !IsRemote(location) {
		rc, err := file.NewLocal(location).Open(ctx)
		if err != nil {
			return nil, &FetchError{Location: location, Err: err}
		}
		logger.Info("source: local file", zap.String("path", location))
		return rc, nil
	}

	client := opt.Client
	if client == nil {
		client = httpds.NewClient(httpds.Config{Logger: logger})
	}
	dir := opt.DownloadDir
	if dir == "" {
		dir = os.TempDir()
	}

	path, n, err := client.Download(ctx, location, dir)
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}
	logger.Info("source: download complete",
		zap.String("url", location),
		zap.String("path", path),
		zap.Int64("bytes", n),
	)

	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		_ = os.Remove(path)
		return nil, &FetchError{Location: location, Err: err}
	}
	if opt.KeepDownload {
		return rc, nil
	}
	return &removeOnClose{ReadCloser: rc, path: path, logger: logger}, nil
}

// removeOnClose deletes the downloaded file after the reader is closed.
type removeOnClose struct {
	io.ReadCloser
	path   string
	logger *zap.Logger
}

func (r *removeOnClose) Close() error {
	err := r.ReadCloser.Close()
	if rmErr := os.Remove(r.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		r.logger.Warn("source: remove download", zap.String("path", r.path), zap.Error(rmErr))
	}
	return err
}
