package tracing

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	defaultBufferSize    = 1000
	defaultFlushInterval = 3 * time.Second
	previewMaxLen        = 2000
)

// SpanExporter exports batches of spans to an external backend.
// Implemented by otelexport.Exporter.
type SpanExporter interface {
	ExportSpans(ctx context.Context, spans []Span)
	Shutdown(ctx context.Context) error
}

// Collector buffers spans in memory and periodically flushes them to the
// attached exporter in batches. Span emission is non-blocking; when the
// buffer fills, spans are dropped rather than stalling the agent loop.
//
// All methods are safe on a nil *Collector, so callers can hold a nil
// collector when tracing is disabled.
type Collector struct {
	spanCh chan Span
	stopCh chan struct{}
	wg     sync.WaitGroup

	verbose  bool // when true, LLM spans include full input messages
	exporter SpanExporter
}

// NewCollector creates a tracing collector.
// Set QUILL_TRACE_VERBOSE=1 to include full LLM input in spans.
func NewCollector(exporter SpanExporter) *Collector {
	verbose := os.Getenv("QUILL_TRACE_VERBOSE") != ""
	if verbose {
		slog.Info("tracing: verbose mode enabled (QUILL_TRACE_VERBOSE)")
	}
	return &Collector{
		spanCh:   make(chan Span, defaultBufferSize),
		stopCh:   make(chan struct{}),
		verbose:  verbose,
		exporter: exporter,
	}
}

// Verbose returns true if verbose tracing is enabled (full LLM input logging).
func (c *Collector) Verbose() bool { return c != nil && c.verbose }

// Enabled reports whether spans will actually go anywhere.
func (c *Collector) Enabled() bool { return c != nil && c.exporter != nil }

// NewTraceID allocates a trace ID for a turn.
func (c *Collector) NewTraceID() uuid.UUID { return uuid.New() }

// Start begins the background flush loop.
func (c *Collector) Start() {
	if c == nil {
		return
	}
	c.wg.Add(1)
	go c.flushLoop()
	slog.Debug("tracing collector started")
}

// Stop gracefully shuts down the collector, flushing remaining spans.
func (c *Collector) Stop() {
	if c == nil {
		return
	}
	close(c.stopCh)
	c.wg.Wait()

	if c.exporter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.exporter.Shutdown(ctx); err != nil {
			slog.Warn("tracing: span exporter shutdown failed", "error", err)
		}
	}
	slog.Debug("tracing collector stopped")
}

// EmitSpan enqueues a span for async batch export.
// Non-blocking: drops the span if the buffer is full.
func (c *Collector) EmitSpan(span Span) {
	if c == nil {
		return
	}
	if span.ID == uuid.Nil {
		span.ID = uuid.New()
	}
	span.InputPreview = truncatePreview(span.InputPreview)
	span.OutputPreview = truncatePreview(span.OutputPreview)

	select {
	case c.spanCh <- span:
	default:
		slog.Warn("tracing: span buffer full, dropping span",
			"span_type", span.SpanType, "name", span.Name)
	}
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(defaultFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.stopCh:
			// Drain remaining spans
			c.flush()
			return
		}
	}
}

func (c *Collector) flush() {
	var spans []Span
	for {
		select {
		case span := <-c.spanCh:
			spans = append(spans, span)
		default:
			goto done
		}
	}
done:

	if len(spans) == 0 || c.exporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c.exporter.ExportSpans(ctx, spans)
	slog.Debug("tracing: flushed spans", "count", len(spans))
}

// truncatePreview sanitizes and truncates a string to previewMaxLen bytes
// without splitting a UTF-8 rune.
func truncatePreview(s string) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= previewMaxLen {
		return s
	}
	maxLen := previewMaxLen
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
