package linkz

import (
	"context"
	"encoding/hex"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type tagForm uint8

const (
	tagEmpty tagForm = iota
	tagString
	tagBinary
)

// Tag is an opaque propagation token in either its string or its byte form.
// The zero value is the empty tag.
type Tag struct {
	data []byte
	form tagForm
}

// StringTag wraps the string form of a tag. An empty string yields the empty tag.
func StringTag(s string) Tag {
	if s == "" {
		return Tag{}
	}
	return Tag{form: tagString, data: []byte(s)}
}

// ByteTag wraps the byte form of a tag. The input is copied. Zero-length
// input yields the empty tag.
func ByteTag(b []byte) Tag {
	if len(b) == 0 {
		return Tag{}
	}
	data := make([]byte, len(b))
	copy(data, b)
	return Tag{form: tagBinary, data: data}
}

// IsEmpty reports whether the tag carries nothing.
func (t Tag) IsEmpty() bool {
	return t.form == tagEmpty || len(t.data) == 0
}

// IsBinary reports whether the tag is in byte form.
func (t Tag) IsBinary() bool {
	return t.form == tagBinary
}

// Bytes returns a copy of the raw tag data.
func (t Tag) Bytes() []byte {
	if t.IsEmpty() {
		return nil
	}
	out := make([]byte, len(t.data))
	copy(out, t.data)
	return out
}

// String returns the string form as is, and byte tags hex encoded.
func (t Tag) String() string {
	switch {
	case t.IsEmpty():
		return ""
	case t.form == tagBinary:
		return hex.EncodeToString(t.data)
	default:
		return string(t.data)
	}
}

// tagContext is the identity carried by a tag.
type tagContext struct {
	traceID trace.TraceID
	spanID  trace.SpanID
	flags   trace.TraceFlags
}

func (c tagContext) valid() bool {
	return c.traceID.IsValid() && c.spanID.IsValid()
}

func (c tagContext) spanContext(remote bool) trace.SpanContext {
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    c.traceID,
		SpanID:     c.spanID,
		TraceFlags: c.flags,
		Remote:     remote,
	})
}

const (
	byteTagVersion = 1
	byteTagSize    = 1 + 16 + 8 + 1
	traceparentKey = "traceparent"
)

var stringTagPropagator = propagation.TraceContext{}

// encodeStringTag renders c in traceparent form.
func encodeStringTag(c tagContext) string {
	if !c.valid() {
		return ""
	}
	carrier := propagation.MapCarrier{}
	ctx := trace.ContextWithSpanContext(context.Background(), c.spanContext(false))
	stringTagPropagator.Inject(ctx, carrier)
	return carrier.Get(traceparentKey)
}

// encodeByteTag renders c as version | trace id | span id | flags.
func encodeByteTag(c tagContext) []byte {
	if !c.valid() {
		return nil
	}
	out := make([]byte, 0, byteTagSize)
	out = append(out, byteTagVersion)
	out = append(out, c.traceID[:]...)
	out = append(out, c.spanID[:]...)
	out = append(out, byte(c.flags))
	return out
}

// decodeTag parses either tag form. Empty or malformed input yields false.
func decodeTag(t Tag) (tagContext, bool) {
	if t.IsEmpty() {
		return tagContext{}, false
	}
	if t.form == tagBinary {
		return decodeByteTag(t.data)
	}
	return decodeStringTag(string(t.data))
}

func decodeStringTag(s string) (tagContext, bool) {
	carrier := propagation.MapCarrier{traceparentKey: s}
	ctx := stringTagPropagator.Extract(context.Background(), carrier)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return tagContext{}, false
	}
	return tagContext{traceID: sc.TraceID(), spanID: sc.SpanID(), flags: sc.TraceFlags()}, true
}

func decodeByteTag(b []byte) (tagContext, bool) {
	if len(b) != byteTagSize || b[0] != byteTagVersion {
		return tagContext{}, false
	}
	var c tagContext
	copy(c.traceID[:], b[1:17])
	copy(c.spanID[:], b[17:25])
	c.flags = trace.TraceFlags(b[25])
	if !c.valid() {
		return tagContext{}, false
	}
	return c, true
}

// copyString implements the two-call buffer idiom for NUL-terminated strings.
// required counts the terminator, written does not. A non-empty buffer that
// is too small receives a NUL at offset zero.
func copyString(s string, buf []byte) (written, required int) {
	required = len(s) + 1
	if len(buf) == 0 {
		return 0, required
	}
	if len(buf) < required {
		buf[0] = 0
		return 0, required
	}
	n := copy(buf, s)
	buf[n] = 0
	return n, required
}

// copyBytes implements the two-call buffer idiom for binary data. Nothing is
// written unless buf can hold all of data.
func copyBytes(data, buf []byte) (written, required int) {
	required = len(data)
	if len(buf) < required || required == 0 {
		return 0, required
	}
	return copy(buf, data), required
}
