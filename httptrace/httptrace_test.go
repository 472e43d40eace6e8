package httptrace

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/linkz"
)

func newSDK(t *testing.T) (*linkz.SDK, *linkz.Collector) {
	t.Helper()
	collector := linkz.NewCollector("test", 64)
	collector.SetSyncMode(true)
	sdk := linkz.New(collector, linkz.WithIDPoolSize(0))
	t.Cleanup(func() {
		sdk.Close()
		collector.Close()
	})
	return sdk, collector
}

func recordsOfKind(records []linkz.Record, kind linkz.Kind) []linkz.Record {
	var out []linkz.Record
	for _, r := range records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func newRouter(sdk *linkz.SDK, app linkz.WebApplicationInfoHandle) http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware(sdk, app, WithCapturedHeaders("content-type", "x-request-id")))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"`+chi.URLParam(r, "id")+`"}`)
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("handler failure")
	})
	return r
}

func TestMiddlewareRecordsIncomingRequest(t *testing.T) {
	sdk, collector := newSDK(t)
	app := sdk.CreateWebApplicationInfo("api-1", "catalog", "/")
	handler := newRouter(sdk, app)

	req := httptest.NewRequest(http.MethodGet, "http://catalog.local/items/7?expand=price&expand=stock", nil)
	req.Header.Set("X-Request-ID", "req-1")
	req.Header.Set("Authorization", "secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	records := collector.Export()
	require.Len(t, records, 1)
	r := records[0]

	assert.Equal(t, linkz.KindIncomingWebRequest, r.Kind)
	assert.Equal(t, "http://catalog.local/items/7?expand=price&expand=stock", r.Web.URL)
	assert.Equal(t, http.MethodGet, r.Web.Method)
	assert.Equal(t, int32(http.StatusCreated), r.Web.StatusCode)
	assert.Equal(t, "192.0.2.1:1234", r.Web.RemoteAddress)
	assert.Equal(t, []linkz.Header{{Name: "X-Request-Id", Value: "req-1"}}, r.Web.RequestHeaders)
	assert.Equal(t, []linkz.Header{{Name: "Content-Type", Value: "application/json"}}, r.Web.ResponseHeaders)
	assert.Equal(t, []linkz.Header{{Name: "expand", Value: "price"}, {Name: "expand", Value: "stock"}}, r.Web.Parameters)
	assert.Equal(t, "catalog", r.Web.Application.ApplicationID)
	assert.Equal(t, linkz.OriginRoot, r.Origin)
}

func TestMiddlewareRecordsPanics(t *testing.T) {
	sdk, collector := newSDK(t)
	app := sdk.CreateWebApplicationInfo("api-1", "catalog", "/")

	handler := Middleware(sdk, app)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler failure")
	}))

	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/panic", nil))
	})

	records := collector.Export()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Error)
	assert.Equal(t, "panic", records[0].Error.Class)
	assert.Equal(t, "handler failure", records[0].Error.Message)
	assert.Equal(t, int32(http.StatusInternalServerError), records[0].Web.StatusCode)
	assert.Zero(t, sdk.Stats().LiveTracers)
}

func TestTraceCrossesHTTPHop(t *testing.T) {
	sdk, collector := newSDK(t)
	app := sdk.CreateWebApplicationInfo("api-1", "catalog", "/")
	server := httptest.NewServer(newRouter(sdk, app))
	defer server.Close()

	client := &http.Client{Transport: NewTransport(sdk, nil)}

	outer := sdk.CreateCustomServiceTracer("sync", "catalog-sync")
	sdk.Start(outer)

	req, err := http.NewRequest(http.MethodGet, server.URL+"/items/42", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	sdk.End(outer)

	assert.Empty(t, req.Header.Get(linkz.HTTPHeaderName), "caller's request must not be modified")

	var records []linkz.Record
	require.Eventually(t, func() bool {
		records = append(records, collector.Export()...)
		return len(records) == 3
	}, time.Second, 5*time.Millisecond)

	serverRec := recordsOfKind(records, linkz.KindIncomingWebRequest)
	clientRec := recordsOfKind(records, linkz.KindOutgoingWebRequest)
	outerRec := recordsOfKind(records, linkz.KindCustomService)
	require.Len(t, serverRec, 1)
	require.Len(t, clientRec, 1)
	require.Len(t, outerRec, 1)

	assert.Equal(t, outerRec[0].SpanID, clientRec[0].ParentID)
	assert.Equal(t, int32(http.StatusCreated), clientRec[0].Web.StatusCode)
	assert.Equal(t, server.URL+"/items/42", clientRec[0].Web.URL)

	assert.Equal(t, linkz.OriginTag, serverRec[0].Origin)
	assert.Equal(t, clientRec[0].SpanID, serverRec[0].ParentID)
	assert.Equal(t, outerRec[0].TraceID, serverRec[0].TraceID)
}

func TestTransportRecordsErrors(t *testing.T) {
	sdk, collector := newSDK(t)

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := &http.Client{Transport: NewTransport(sdk, nil)}
	resp, err := client.Get(url)
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)

	records := collector.Export()
	require.Len(t, records, 1)
	require.NotNil(t, records[0].Error)
	assert.NotEmpty(t, records[0].Error.Class)
	assert.Equal(t, int32(linkz.Unset), records[0].Web.StatusCode)
}

func TestInactiveAgentPassesThrough(t *testing.T) {
	sdk, collector := newSDK(t)
	app := sdk.CreateWebApplicationInfo("api-1", "catalog", "/")
	collector.SetState(linkz.AgentStateTemporarilyInactive)

	var seen string
	base := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		seen = req.Header.Get(linkz.HTTPHeaderName)
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Header: http.Header{}}, nil
	})
	client := &http.Client{Transport: NewTransport(sdk, base)}
	resp, err := client.Get("http://example.invalid/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, seen)

	rec := httptest.NewRecorder()
	newRouter(sdk, app).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/1", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)

	assert.Zero(t, collector.Count())
	assert.Zero(t, sdk.Stats().TracersCreated)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
