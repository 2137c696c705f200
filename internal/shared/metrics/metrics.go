package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	documentsUploadedTotal        atomic.Uint64
	ingestionTriggeredTotal       atomic.Uint64
	ingestionCallbacksTotal       atomic.Uint64
	ingestionCallbackFailureTotal atomic.Uint64

	triggerDuration = newHistogram([]float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000})
)

// IncDocumentsUploaded increments the uploaded-documents counter.
func IncDocumentsUploaded() {
	documentsUploadedTotal.Add(1)
}

// IncIngestionTriggered increments the trigger counter.
func IncIngestionTriggered() {
	ingestionTriggeredTotal.Add(1)
}

// IncIngestionCallbacks increments the processed-callback counter.
func IncIngestionCallbacks() {
	ingestionCallbacksTotal.Add(1)
}

// IncIngestionCallbackFailures increments the failed-callback counter.
func IncIngestionCallbackFailures() {
	ingestionCallbackFailureTotal.Add(1)
}

// ObserveTriggerDurationMs records a trigger round-trip in milliseconds.
func ObserveTriggerDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	triggerDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "documents_uploaded_total", "Total documents uploaded", documentsUploadedTotal.Load())
	writeCounter(&buf, "ingestion_triggered_total", "Total ingestion triggers dispatched", ingestionTriggeredTotal.Load())
	writeCounter(&buf, "ingestion_callbacks_total", "Total ingestion status callbacks applied", ingestionCallbacksTotal.Load())
	writeCounter(&buf, "ingestion_callback_failures_total", "Total ingestion status callbacks rejected", ingestionCallbackFailureTotal.Load())
	writeHistogram(&buf, "ingestion_trigger_duration_ms", "Trigger duration in milliseconds", triggerDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	for i, bound := range snap.buckets {
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", name, strconv.FormatFloat(bound, 'f', -1, 64), snap.counts[i])
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %g\n", name, snap.sum)
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}
