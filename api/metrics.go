package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName         = "zen-records/api"
	requestSpanName    = "http.request"
	requestEventName   = "request.completed"
	requestEventDomain = "zen-records.api"
	observabilityEvent = "observability.event"
)

// requestMetrics collects timings and outcome for one request and reports
// them once as a log entry and as a span event.
type requestMetrics struct {
	logger     *log.Logger
	span       trace.Span
	start      time.Time
	app        string
	route      string
	method     string
	records    int
	bytes      int
	serveTime  time.Duration
	errorStage string
	cause      error
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, app, method, route string) (*requestMetrics, context.Context) {
	m := &requestMetrics{logger: logger, start: time.Now(), app: app, method: method, route: route}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName, trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.method", method),
			attribute.String("zen.app", app),
		))
	m.span = span
	return m, spanCtx
}

func (m *requestMetrics) ObserveServe(d time.Duration) {
	if d <= 0 {
		return
	}
	m.serveTime = d
}

func (m *requestMetrics) SetRecords(n int) {
	if n < 0 {
		n = 0
	}
	m.records = n
}

func (m *requestMetrics) SetBytes(n int) {
	if n < 0 {
		n = 0
	}
	m.bytes = n
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Fail records the stage and cause of a failed request. The response has
// usually been written already, so the handler itself returns nil.
func (m *requestMetrics) Fail(stage string, err error) {
	m.SetErrorStage(stage)
	m.cause = err
}

func (m *requestMetrics) attributes(status int, err error) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.String("http.method", m.method),
		attribute.Int("http.status_code", status),
		attribute.String("zen.app", m.app),
		attribute.Float64("zen.request.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int("zen.request.records", m.records),
	}
	if m.bytes > 0 {
		attrs = append(attrs, attribute.Int("zen.request.bytes", m.bytes))
	}
	if m.serveTime > 0 {
		attrs = append(attrs, attribute.Float64("zen.request.serve_ms", durationToMillis(m.serveTime)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("zen.request.error_stage", m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}
	return attrs
}

// Log ends the span and writes the observability event.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if err == nil && status >= http.StatusInternalServerError {
		err = m.cause
	}
	attrs := m.attributes(status, err)
	sevText, sevNumber := severityForStatus(status, err)

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		eventAttrs := append([]attribute.KeyValue{
			attribute.String("event.name", requestEventName),
			attribute.String("event.domain", requestEventDomain),
			attribute.String("severity_text", sevText),
			attribute.Int("severity_number", sevNumber),
		}, attrs...)
		m.span.AddEvent(observabilityEvent, trace.WithAttributes(eventAttrs...))
		switch {
		case err != nil:
			m.span.SetStatus(codes.Error, err.Error())
		case status >= http.StatusInternalServerError:
			m.span.SetStatus(codes.Error, http.StatusText(status))
		default:
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	values := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		values[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      requestEventName,
		"event.domain":    requestEventDomain,
		"severity_text":   sevText,
		"severity_number": sevNumber,
		"attributes":      values,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	entry := m.logger.WithFields(fields)
	switch sevText {
	case "ERROR":
		entry.Error(observabilityEvent)
	case "WARN":
		entry.Warn(observabilityEvent)
	default:
		entry.Info(observabilityEvent)
	}
}

// severityForStatus maps an outcome to OpenTelemetry log severity.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
