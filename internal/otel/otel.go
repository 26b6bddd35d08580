// Package otel turns eventbus events into OpenTelemetry spans and backend
// call metrics.
package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	eventbus "github.com/hanpama/oasgraph/internal/eventbus"
	events "github.com/hanpama/oasgraph/internal/events"
	reqid "github.com/hanpama/oasgraph/internal/reqid"
)

const instrumentationName = "github.com/hanpama/oasgraph"

// Setup exports traces over OTLP/gRPC to endpoint and subscribes to the
// current bus. With an empty endpoint nothing is configured. Metrics go to
// the global MeterProvider.
func Setup(endpoint, service string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(service))),
	)
	otel.SetTracerProvider(tp)

	sub, err := newSubscriber(otel.Tracer(instrumentationName), otel.Meter(instrumentationName))
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return nil, err
	}
	unsubscribe := sub.register()
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

type backendKey struct {
	rid    int64
	method string
	url    string
}

// openSpans holds spans between their start and finish events.
type openSpans struct{ m sync.Map }

func (o *openSpans) put(key any, span trace.Span) { o.m.Store(key, span) }

func (o *openSpans) get(key any) (trace.Span, bool) {
	v, ok := o.m.Load(key)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

func (o *openSpans) take(key any) (trace.Span, bool) {
	v, ok := o.m.LoadAndDelete(key)
	if !ok {
		return nil, false
	}
	return v.(trace.Span), true
}

type subscriber struct {
	tracer trace.Tracer

	// http and graphql spans are keyed by request id.
	http    openSpans
	graphql openSpans
	backend openSpans

	backendCalls    metric.Int64Counter
	backendDuration metric.Float64Histogram
}

func newSubscriber(tracer trace.Tracer, meter metric.Meter) (*subscriber, error) {
	calls, err := meter.Int64Counter("oasgraph.backend.calls",
		metric.WithDescription("Backend HTTP calls by method and status."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("oasgraph.backend.duration",
		metric.WithDescription("Backend HTTP call duration including retries."),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	return &subscriber{tracer: tracer, backendCalls: calls, backendDuration: duration}, nil
}

// parent returns ctx carrying the innermost open span of the request.
func (s *subscriber) parent(ctx context.Context, rid int64) context.Context {
	if span, ok := s.graphql.get(rid); ok {
		return trace.ContextWithSpan(ctx, span)
	}
	if span, ok := s.http.get(rid); ok {
		return trace.ContextWithSpan(ctx, span)
	}
	return ctx
}

func (s *subscriber) register() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(s.onHTTPStart),
		eventbus.Subscribe(s.onHTTPFinish),
		eventbus.Subscribe(s.onGraphQLStart),
		eventbus.Subscribe(s.onGraphQLFinish),
		eventbus.Subscribe(s.onBackendStart),
		eventbus.Subscribe(s.onBackendFinish),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *subscriber) onHTTPStart(ctx context.Context, e events.HTTPStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		semconv.HTTPMethodKey.String(e.Request.Method),
		attribute.String("http.target", e.Request.URL.Path),
		attribute.Int64("graphql.request_id", rid),
	)
	s.http.put(rid, span)
}

func (s *subscriber) onHTTPFinish(ctx context.Context, e events.HTTPFinish) {
	rid, _ := reqid.FromContext(ctx)
	span, ok := s.http.take(rid)
	if !ok {
		return
	}
	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
	if e.Status >= 500 {
		span.SetStatus(codes.Error, "")
	}
	span.End()
}

func (s *subscriber) onGraphQLStart(ctx context.Context, e events.GraphQLStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, rid), "graphql.operation")
	span.SetAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.String("graphql.operation.type", e.OperationType),
	)
	s.graphql.put(rid, span)
}

func (s *subscriber) onGraphQLFinish(ctx context.Context, e events.GraphQLFinish) {
	rid, _ := reqid.FromContext(ctx)
	span, ok := s.graphql.take(rid)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
	if len(e.Errors) > 0 {
		span.SetStatus(codes.Error, e.Errors[0].Error())
	}
	span.End()
}

func (s *subscriber) onBackendStart(ctx context.Context, e events.BackendStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(s.parent(ctx, rid), "http.client", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		semconv.HTTPMethodKey.String(e.Method),
		semconv.HTTPURLKey.String(e.URL),
	)
	s.backend.put(backendKey{rid: rid, method: e.Method, url: e.URL}, span)
}

func (s *subscriber) onBackendFinish(ctx context.Context, e events.BackendFinish) {
	attrs := metric.WithAttributes(
		semconv.HTTPMethodKey.String(e.Method),
		semconv.HTTPStatusCodeKey.Int(e.Status),
	)
	s.backendCalls.Add(ctx, 1, attrs)
	s.backendDuration.Record(ctx, float64(e.Duration)/float64(time.Millisecond), attrs)

	rid, _ := reqid.FromContext(ctx)
	span, ok := s.backend.take(backendKey{rid: rid, method: e.Method, url: e.URL})
	if !ok {
		return
	}
	span.SetAttributes(
		semconv.HTTPStatusCodeKey.Int(e.Status),
		attribute.Int("http.attempts", int(e.Attempts)),
	)
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
	span.End()
}
