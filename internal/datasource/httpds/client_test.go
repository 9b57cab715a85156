package httpds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastClient(retries int) *Client {
	return NewClient(Config{
		MaxRetries:     retries,
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true})

	if c.rc.RetryMax != 3 {
		t.Fatalf("RetryMax = %d, want 3", c.rc.RetryMax)
	}
	if c.rc.RetryWaitMin != 200*time.Millisecond {
		t.Fatalf("RetryWaitMin = %v, want 200ms", c.rc.RetryWaitMin)
	}
	if c.rc.RetryWaitMax != 5*time.Second {
		t.Fatalf("RetryWaitMax = %v, want 5s", c.rc.RetryWaitMax)
	}
	if c.userAgent != DefaultUserAgent {
		t.Fatalf("userAgent = %q", c.userAgent)
	}

	transport, ok := c.rc.HTTPClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.rc.HTTPClient.Transport)
	}
	if transport.ResponseHeaderTimeout != 30*time.Second {
		t.Fatalf("ResponseHeaderTimeout = %v, want 30s", transport.ResponseHeaderTimeout)
	}
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify=true when configured")
	}
	if c.rc.HTTPClient.Timeout != 0 {
		t.Fatalf("whole-request timeout must stay unset, got %v", c.rc.HTTPClient.Timeout)
	}
}

func TestNewClient_NegativeRetriesDisables(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{MaxRetries: -1})
	if c.rc.RetryMax != 0 {
		t.Fatalf("RetryMax = %d, want 0", c.rc.RetryMax)
	}
}

func TestGet_RetryOn5xxThenSuccess(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := fastClient(3).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestGet_StopsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := fastClient(2).Get(context.Background(), srv.URL, nil)
	if err == nil {
		resp.Body.Close()
		t.Fatalf("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 attempts (1 initial + 2 retries), got %d", got)
	}
}

func TestGet_NonRetryableStatus(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := fastClient(3).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestGet_HeadersAndUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA, gotBase, gotReq string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotBase = r.Header.Get("X-Base")
		gotReq = r.Header.Get("X-Req")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{
		UserAgent:   "probe/1",
		BaseHeaders: http.Header{"X-Base": {"b"}, "X-Req": {"base"}},
	})
	resp, err := c.Get(context.Background(), srv.URL, http.Header{"X-Req": {"override"}})
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	resp.Body.Close()

	if gotUA != "probe/1" || gotBase != "b" || gotReq != "override" {
		t.Fatalf("headers: ua=%q base=%q req=%q", gotUA, gotBase, gotReq)
	}
}

func TestGet_EmptyURL(t *testing.T) {
	t.Parallel()

	if _, err := fastClient(0).Get(context.Background(), "", nil); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestGet_CanceledContext(t *testing.T) {
	t.Parallel()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastClient(3).Get(ctx, srv.URL, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := atomic.LoadInt32(&hits); got > 1 {
		t.Fatalf("expected at most 1 attempt after cancel, got %d", got)
	}
}

func TestIsRetryableStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want bool
	}{
		{http.StatusOK, false},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusNotImplemented, true},
		{http.StatusServiceUnavailable, true},
	}
	for _, tt := range tests {
		if got := isRetryableStatus(tt.code); got != tt.want {
			t.Errorf("isRetryableStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestDownload_WritesFile(t *testing.T) {
	t.Parallel()

	const body = "VendorID,tpep_pickup_datetime\n1,2019-01-01 00:46:40\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, n, err := fastClient(0).Download(context.Background(), srv.URL+"/trip-data/yellow_tripdata_2019-01.csv", dir)
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if n != int64(len(body)) {
		t.Fatalf("n = %d, want %d", n, len(body))
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("file %q not under %q", path, dir)
	}
	if !strings.HasSuffix(path, "yellow_tripdata_2019-01.csv") {
		t.Fatalf("file name %q does not keep the URL basename", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != body {
		t.Fatalf("content mismatch: %q", got)
	}
}

func TestDownload_StatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	_, _, err := fastClient(0).Download(context.Background(), srv.URL+"/missing.csv", dir)

	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected *StatusError 404, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files left behind, found %d", len(entries))
	}
}
