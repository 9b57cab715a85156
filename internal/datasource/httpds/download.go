package httpds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// StatusError is returned by Download for a final non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpds: GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Download streams url into a new file under dir and returns its path and
// size. A partially written file is removed on failure.
func (c *Client) Download(ctx context.Context, url, dir string) (path string, n int64, err error) {
	resp, err := c.Get(ctx, url, nil)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", 0, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	f, err := os.CreateTemp(dir, "tlc-*-"+SafeFilenameFromURL(url))
	if err != nil {
		return "", 0, fmt.Errorf("httpds: create temp file: %w", err)
	}
	path = f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	c.logger.Debug("httpds: downloading",
		zap.String("url", url),
		zap.String("path", path),
		zap.Int64("content_length", resp.ContentLength),
	)

	n, err = io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return "", 0, fmt.Errorf("httpds: write %s: %w", path, err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		err = fmt.Errorf("httpds: short body: got %d of %d bytes", n, resp.ContentLength)
		return "", 0, err
	}
	return path, n, nil
}
