// Package otelagent exports linkz records as OpenTelemetry spans.
//
// Spans keep the trace and span ids assigned by linkz so tags exchanged with
// other processes stay meaningful in the exported data. That requires a
// tracer provider built by NewTracerProvider, which installs an id generator
// reading the ids of the record being exported.
package otelagent

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoobzio/linkz"
)

// ScopeName is the instrumentation scope of exported spans.
const ScopeName = "github.com/zoobzio/linkz/otelagent"

// Agent is a linkz.Agent that starts and ends one OpenTelemetry span per record.
type Agent struct {
	tracer trace.Tracer
	state  atomic.Int32
}

// New creates an active agent exporting through provider.
func New(provider trace.TracerProvider) *Agent {
	a := &Agent{tracer: provider.Tracer(ScopeName)}
	a.state.Store(int32(linkz.AgentStateActive))
	return a
}

// NewTracerProvider builds an SDK tracer provider whose spans reuse the ids of
// exported records. Other options, such as exporters, are applied as given.
func NewTracerProvider(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append(opts, sdktrace.WithIDGenerator(recordIDs{}))
	return sdktrace.NewTracerProvider(opts...)
}

// State implements linkz.Agent.
func (a *Agent) State() linkz.AgentState {
	return linkz.AgentState(a.state.Load())
}

// SetState changes the state reported to the SDK, e.g. to pause tracing.
func (a *Agent) SetState(state linkz.AgentState) {
	a.state.Store(int32(state))
}

// Capture implements linkz.Agent.
func (a *Agent) Capture(r linkz.Record) {
	ctx := withIDs(context.Background(), r.TraceID, r.SpanID)
	if r.HasParent() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    r.TraceID,
			SpanID:     r.ParentID,
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		}))
	}

	_, span := a.tracer.Start(ctx, spanName(r),
		trace.WithTimestamp(r.StartTime),
		trace.WithSpanKind(spanKind(r.Kind)),
		trace.WithAttributes(attributes(r)...),
	)

	switch {
	case r.Error != nil:
		span.SetStatus(codes.Error, r.Error.Message)
	case r.Web != nil && r.Web.StatusCode >= 500:
		span.SetStatus(codes.Error, "")
	}

	span.End(trace.WithTimestamp(r.EndTime))
}

// recordIDs hands out the ids carried on the context by Capture, and falls
// back to random ids for spans started by anything else.
type recordIDs struct{}

type idsKey struct{}

type ids struct {
	traceID trace.TraceID
	spanID  trace.SpanID
}

func withIDs(ctx context.Context, traceID trace.TraceID, spanID trace.SpanID) context.Context {
	return context.WithValue(ctx, idsKey{}, ids{traceID: traceID, spanID: spanID})
}

func (recordIDs) NewIDs(ctx context.Context) (trace.TraceID, trace.SpanID) {
	if v, ok := ctx.Value(idsKey{}).(ids); ok {
		return v.traceID, v.spanID
	}
	return randomIDs()
}

func (recordIDs) NewSpanID(ctx context.Context, _ trace.TraceID) trace.SpanID {
	if v, ok := ctx.Value(idsKey{}).(ids); ok {
		return v.spanID
	}
	_, spanID := randomIDs()
	return spanID
}
