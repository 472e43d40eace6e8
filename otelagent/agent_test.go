package otelagent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoobzio/linkz"
)

func setup(t *testing.T, opts ...linkz.Option) (*linkz.SDK, *Agent, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	provider := NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	agent := New(provider)
	sdk := linkz.New(agent, append([]linkz.Option{linkz.WithIDPoolSize(0)}, opts...)...)
	t.Cleanup(sdk.Close)
	return sdk, agent, exporter
}

func attr(span tracetest.SpanStub, key attribute.Key) attribute.Value {
	for _, kv := range span.Attributes {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestSpansKeepRecordIdentity(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := clockz.NewFakeClockAt(start)
	sdk, _, exporter := setup(t, linkz.WithClock(clock))

	outer := sdk.CreateCustomServiceTracer("checkout", "shop")
	sdk.Start(outer)
	inner := sdk.CreateOutgoingRemoteCallTracer("Charge", "payments.Payments", "payments:443", linkz.Channel{Type: linkz.ChannelTCPIP, Endpoint: "payments:443"})
	sdk.SetProtocolName(inner, "gRPC")
	sdk.Start(inner)
	tag := sdk.OutgoingStringTag(inner)
	clock.Advance(20 * time.Millisecond)
	sdk.End(inner)
	clock.Advance(5 * time.Millisecond)
	sdk.End(outer)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	innerSpan, outerSpan := spans[0], spans[1]

	assert.Equal(t, "Charge", innerSpan.Name)
	assert.Equal(t, trace.SpanKindClient, innerSpan.SpanKind)
	assert.Equal(t, start, innerSpan.StartTime)
	assert.Equal(t, start.Add(20*time.Millisecond), innerSpan.EndTime)
	assert.Equal(t, outerSpan.SpanContext.TraceID(), innerSpan.SpanContext.TraceID())
	assert.Equal(t, outerSpan.SpanContext.SpanID(), innerSpan.Parent.SpanID())
	assert.Equal(t, "gRPC", attr(innerSpan, ProtocolKey).AsString())
	assert.Equal(t, "tcp_ip", attr(innerSpan, ChannelTypeKey).AsString())

	// The tag sent downstream names the exported span.
	assert.Contains(t, tag, innerSpan.SpanContext.TraceID().String())
	assert.Contains(t, tag, innerSpan.SpanContext.SpanID().String())

	assert.Equal(t, trace.SpanKindServer, outerSpan.SpanKind)
	assert.False(t, outerSpan.Parent.IsValid())
	assert.Equal(t, "root", attr(outerSpan, OriginKey).AsString())
}

func TestErrorsBecomeSpanStatus(t *testing.T) {
	sdk, _, exporter := setup(t)

	h := sdk.CreateOutgoingWebRequestTracer("http://inventory/items", "GET")
	sdk.Start(h)
	sdk.Error(h, "net.OpError", "connection refused")
	sdk.End(h)

	app := sdk.CreateWebApplicationInfo("srv", "inventory", "/")
	w := sdk.CreateIncomingWebRequestTracer(app, "/items", "POST")
	sdk.Start(w)
	sdk.SetStatusCode(w, 503)
	sdk.End(w)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "connection refused", spans[0].Status.Description)
	assert.Equal(t, "net.OpError", attr(spans[0], ErrorClassKey).AsString())

	assert.Equal(t, codes.Error, spans[1].Status.Code)
	assert.Equal(t, int64(503), attr(spans[1], "http.response.status_code").AsInt64())
	assert.Equal(t, "inventory", attr(spans[1], ApplicationIDKey).AsString())
}

func TestDatabaseAndMessageAttributes(t *testing.T) {
	sdk, _, exporter := setup(t)

	db := sdk.CreateDatabaseInfo("orders", linkz.VendorPostgreSQL, linkz.Channel{Type: linkz.ChannelTCPIP, Endpoint: "pg:5432"})
	q := sdk.CreateSQLDatabaseRequestTracer(db, "SELECT id FROM orders")
	sdk.Start(q)
	sdk.SetReturnedRowCount(q, 12)
	sdk.End(q)

	queue := sdk.CreateMessagingSystemInfo(linkz.MessagingVendorKafka, "order-events", linkz.DestinationTopic, linkz.Channel{Type: linkz.ChannelTCPIP})
	m := sdk.CreateOutgoingMessageTracer(queue)
	sdk.Start(m)
	sdk.SetVendorMessageID(m, "p0-42")
	sdk.AddCustomRequestAttribute("order.total", 99.5)
	sdk.End(m)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	assert.Equal(t, "PostgreSQL orders", spans[0].Name)
	assert.Equal(t, "SELECT id FROM orders", attr(spans[0], DBStatementKey).AsString())
	assert.Equal(t, int64(12), attr(spans[0], RowCountKey).AsInt64())
	assert.Equal(t, attribute.INVALID, attr(spans[0], RoundTripCountKey).Type())

	assert.Equal(t, "publish order-events", spans[1].Name)
	assert.Equal(t, trace.SpanKindProducer, spans[1].SpanKind)
	assert.Equal(t, "p0-42", attr(spans[1], "messaging.message.id").AsString())
	assert.Equal(t, 99.5, attr(spans[1], "order.total").AsFloat64())
}

func TestTagParentAcrossGoroutines(t *testing.T) {
	sdk, _, exporter := setup(t)

	client := sdk.CreateOutgoingRemoteCallTracer("Get", "svc", "ep", linkz.Channel{})
	sdk.Start(client)
	tag := sdk.OutgoingByteTag(client)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		server := sdk.CreateIncomingRemoteCallTracer("Get", "svc", "ep")
		sdk.SetIncomingByteTag(server, tag)
		sdk.Start(server)
		sdk.End(server)
	}()
	wg.Wait()
	sdk.End(client)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	serverSpan, clientSpan := spans[0], spans[1]
	assert.Equal(t, clientSpan.SpanContext.SpanID(), serverSpan.Parent.SpanID())
	assert.True(t, serverSpan.Parent.IsRemote())
	assert.Equal(t, "tag", attr(serverSpan, OriginKey).AsString())
}

func TestAgentStateGatesTracing(t *testing.T) {
	sdk, agent, exporter := setup(t)

	agent.SetState(linkz.AgentStateTemporarilyInactive)
	assert.Equal(t, linkz.TracerHandle(linkz.InvalidHandle), sdk.CreateCustomServiceTracer("op", "svc"))

	agent.SetState(linkz.AgentStateActive)
	h := sdk.CreateCustomServiceTracer("op", "svc")
	sdk.Start(h)
	sdk.End(h)
	assert.Len(t, exporter.GetSpans(), 1)
}

func TestForeignSpansGetRandomIDs(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	_, span := provider.Tracer("other").Start(context.Background(), "plain")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.True(t, spans[0].SpanContext.IsValid())
}
