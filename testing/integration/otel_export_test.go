package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoobzio/linkz"
	"github.com/zoobzio/linkz/httptrace"
	"github.com/zoobzio/linkz/otelagent"
)

// TestHTTPHopExportsLinkedSpans checks that a traced HTTP hop exported
// through OpenTelemetry keeps the parent linkage carried by the tag.
func TestHTTPHopExportsLinkedSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := otelagent.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	agent, err := linkz.NewAsyncAgent(otelagent.New(provider), 2, 64)
	require.NoError(t, err)
	defer agent.Close()

	sdk := linkz.New(agent)
	defer sdk.Close()

	app := sdk.CreateWebApplicationInfo("catalog-1", "catalog", "/")
	server := httptest.NewServer(httptrace.Middleware(sdk, app)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})))
	defer server.Close()

	client := &http.Client{Transport: httptrace.NewTransport(sdk, nil)}
	resp, err := client.Get(server.URL + "/items")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	require.Eventually(t, func() bool {
		return len(exporter.GetSpans()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	var clientSpan, serverSpan tracetest.SpanStub
	for _, s := range exporter.GetSpans() {
		switch s.SpanKind {
		case trace.SpanKindClient:
			clientSpan = s
		case trace.SpanKindServer:
			serverSpan = s
		}
	}
	require.True(t, clientSpan.SpanContext.IsValid())
	require.True(t, serverSpan.SpanContext.IsValid())

	assert.Equal(t, clientSpan.SpanContext.TraceID(), serverSpan.SpanContext.TraceID())
	assert.Equal(t, clientSpan.SpanContext.SpanID(), serverSpan.Parent.SpanID())
	assert.False(t, clientSpan.Parent.IsValid())
	assert.Zero(t, agent.Dropped())
	assert.Zero(t, sdk.Stats().UsageErrors)
}
