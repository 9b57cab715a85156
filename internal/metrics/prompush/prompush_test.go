package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/Altaf-Khan-Jk/Database-Automation/internal/metrics"
)

func readCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	return m.GetCounter().GetValue()
}

func readGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Gauge.Write() error = %v", err)
	}
	return m.GetGauge().GetValue()
}

func readSummaryCount(t *testing.T, v *prometheus.SummaryVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := v.WithLabelValues(labels...).(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	return m.GetSummary().GetSampleCount()
}

func readHistogramCount(t *testing.T, v *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	if err := v.WithLabelValues(labels...).(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("Histogram.Write() error = %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL returns error", jobName: "j", wantErr: true},
		{name: "empty job name uses default", gatewayURL: "http://pushgateway:9091", wantJobName: "tlc_ingest"},
		{name: "explicit job name is preserved", jobName: "nightly", gatewayURL: "http://pushgateway:9091", wantJobName: "nightly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want nil, error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend error = %v", err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
		})
	}
}

func TestRouting(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("tlc", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "load", "status": "success"})
	b.IncCounter(metrics.RowsTotal, 5, metrics.Labels{"kind": metrics.RowsInserted})
	b.IncCounter(metrics.RowsTotal, 2, metrics.Labels{"kind": metrics.RowsInserted})
	b.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": metrics.BatchFailed})
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})
	b.ObserveHistogram(metrics.StepDuration, 1.5, metrics.Labels{"step": "load", "status": "success"})
	b.ObserveHistogram(metrics.BatchDuration, 0.2, metrics.Labels{"status": metrics.BatchLoaded})
	b.ObserveHistogram("other_metric", 2, nil)
	b.SetGauge(metrics.ProcessRSSBytes, 4096, nil)

	if got := readCounterValue(t, b.stepCounter.WithLabelValues("load", "success")); got != 1 {
		t.Fatalf("step counter = %v, want 1", got)
	}
	if got := readCounterValue(t, b.rowCounter.WithLabelValues(metrics.RowsInserted)); got != 7 {
		t.Fatalf("row counter = %v, want 7", got)
	}
	if got := readCounterValue(t, b.batchCounter.WithLabelValues(metrics.BatchFailed)); got != 1 {
		t.Fatalf("batch counter = %v, want 1", got)
	}
	if got := readSummaryCount(t, b.stepDuration, "load", "success"); got != 1 {
		t.Fatalf("step summary count = %d, want 1", got)
	}
	if got := readHistogramCount(t, b.batchDuration, metrics.BatchLoaded); got != 1 {
		t.Fatalf("batch histogram count = %d, want 1", got)
	}
	if got := readGaugeValue(t, b.rssGauge); got != 4096 {
		t.Fatalf("rss gauge = %v, want 4096", got)
	}
}

func TestNilCollectorsAreSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "read"})
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.ObserveHistogram(metrics.BatchDuration, 1, nil)
	b.SetGauge(metrics.ProcessRSSBytes, 1, nil)
}

func TestFlush(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method  string
		path    string
		bodyLen int
	}
	reqCh := make(chan pushed, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushed{method: r.Method, path: r.URL.Path, bodyLen: len(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	b, err := NewBackend("tlc_ingest", server.URL)
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": metrics.RowsRead})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	select {
	case got := <-reqCh:
		if got.method != http.MethodPut {
			t.Fatalf("method = %s, want PUT", got.method)
		}
		if got.path != "/metrics/job/tlc_ingest" {
			t.Fatalf("path = %s", got.path)
		}
		if got.bodyLen == 0 {
			t.Fatalf("push body is empty")
		}
	default:
		t.Fatalf("Flush() did not reach the Pushgateway")
	}
}

func BenchmarkIncCounterRows(b *testing.B) {
	backend, err := NewBackend("tlc", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend() error = %v", err)
	}
	labels := metrics.Labels{"kind": metrics.RowsInserted}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RowsTotal, 1, labels)
	}
}
