package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/oasgraph/internal/eventbus"
	events "github.com/hanpama/oasgraph/internal/events"
	reqid "github.com/hanpama/oasgraph/internal/reqid"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup("", "oasgraph")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestBackendSpansNestUnderOperation(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(nil)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	sub, err := newSubscriber(tp.Tracer("test"), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	sub.register()

	ctx, _ := reqid.NewContext(context.Background())
	r := httptest.NewRequest("POST", "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Pets", OperationType: "query"})
	eventbus.Publish(ctx, events.BackendStart{Method: "GET", URL: "https://api.example.com/pets"})
	eventbus.Publish(ctx, events.BackendFinish{
		Method:   "GET",
		URL:      "https://api.example.com/pets",
		Status:   503,
		Attempts: 3,
		Err:      errors.New("unavailable"),
		Duration: time.Millisecond,
	})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Pets", OperationType: "query"})
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: 200})

	spans := rec.Ended()
	require.Len(t, spans, 3)
	backend, gql, httpSpan := spans[0], spans[1], spans[2]
	assert.Equal(t, "http.client", backend.Name())
	assert.Equal(t, "graphql.operation", gql.Name())
	assert.Equal(t, "http.request", httpSpan.Name())
	assert.Equal(t, gql.SpanContext().SpanID(), backend.Parent().SpanID())
	assert.Equal(t, httpSpan.SpanContext().SpanID(), gql.Parent().SpanID())
	assert.Contains(t, backend.Attributes(), attribute.Int("http.attempts", 3))
	require.Len(t, backend.Events(), 1)
}

func TestUnregisterStopsRecording(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	sub, err := newSubscriber(tp.Tracer("test"), noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	unsubscribe := sub.register()

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "A"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "A", Errors: []error{errors.New("bad")}})
	unsubscribe()
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "B"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "B"})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "Error", spans[0].Status().Code.String())
}
