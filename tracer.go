package linkz

import "go.opentelemetry.io/otel/trace"

type lifecycle uint8

const (
	stateCreated lifecycle = iota
	stateStarted
	stateEnded
)

// tracer is one traced operation. It is owned by the goroutine that created
// it and is never touched by any other goroutine, so it carries no lock.
type tracer struct {
	releaseInfo func()
	stringTag   string
	byteTag     []byte
	record      Record
	incoming    tagContext
	owner       int64
	state       lifecycle
	hasIncoming bool
	pushed      bool
	errored     bool
}

func (t *tracer) outgoingContext() tagContext {
	return tagContext{
		traceID: t.record.TraceID,
		spanID:  t.record.SpanID,
		flags:   trace.FlagsSampled,
	}
}

// newTracer registers a tracer for the calling goroutine. The parent comes
// from link when given, otherwise from the top of the goroutine's context stack.
func (s *SDK) newTracer(kind Kind, record Record, releaseInfo func(), link *tagContext) TracerHandle {
	gid := goroutineID()

	record.Kind = kind
	record.SpanID = s.generateSpanID()
	switch parent := s.stacks.top(gid); {
	case link != nil:
		record.TraceID = link.traceID
		record.ParentID = link.spanID
		record.Origin = OriginLink
	case parent != nil:
		record.TraceID = parent.record.TraceID
		record.ParentID = parent.record.SpanID
		record.Origin = OriginStack
	default:
		record.TraceID = s.generateTraceID()
		record.Origin = OriginRoot
	}

	t := &tracer{
		record:      record,
		owner:       gid,
		state:       stateCreated,
		releaseInfo: releaseInfo,
	}

	h := s.registry.create(objectTracer, t)
	if h == InvalidHandle {
		if releaseInfo != nil {
			releaseInfo()
		}
		s.diagnose(SeverityError, "tracer could not be registered")
		return TracerHandle(InvalidHandle)
	}
	s.stats.tracersCreated.Add(1)
	s.stats.liveTracers.Add(1)
	return TracerHandle(h)
}

// ownedTracer resolves h for the calling goroutine. Invalid handles are a
// silent no-op; a foreign goroutine is a diagnosed usage error.
func (s *SDK) ownedTracer(h TracerHandle, op string) (*tracer, bool) {
	v, ok := s.registry.resolve(Handle(h), objectTracer)
	if !ok {
		return nil, false
	}
	t := v.(*tracer)
	if t.owner != goroutineID() {
		s.usageError(op + ": tracer used from a goroutine that did not create it")
		return nil, false
	}
	return t, true
}

// Start begins time measurement and makes the tracer the active tracer of
// the calling goroutine. An incoming tag set before Start becomes the parent.
func (s *SDK) Start(h TracerHandle) {
	t, ok := s.ownedTracer(h, "start")
	if !ok {
		return
	}
	if t.state != stateCreated {
		s.usageError("start: tracer already started")
		return
	}

	if t.hasIncoming {
		t.record.TraceID = t.incoming.traceID
		t.record.ParentID = t.incoming.spanID
		t.record.Origin = OriginTag
	}

	t.record.StartTime = s.clock.Now()
	t.record.Started = true
	t.state = stateStarted

	s.stacks.push(t.owner, t)
	t.pushed = true
}

// End stops time measurement, captures exit fields and releases the tracer.
// Tracers that were never started are released without being captured.
func (s *SDK) End(h TracerHandle) {
	t, ok := s.ownedTracer(h, "end")
	if !ok {
		return
	}
	if _, ok := s.registry.release(Handle(h), objectTracer); !ok {
		return
	}

	if t.pushed {
		s.stacks.remove(t.owner, t)
		t.pushed = false
	}
	t.state = stateEnded

	if t.record.Started {
		t.record.EndTime = s.clock.Now()
		t.record.Duration = t.record.EndTime.Sub(t.record.StartTime)
		if t.record.Duration < 0 {
			t.record.Duration = 0
		}
	}

	if t.releaseInfo != nil {
		t.releaseInfo()
		t.releaseInfo = nil
	}

	s.stats.tracersEnded.Add(1)
	s.stats.liveTracers.Add(-1)

	if t.record.Started {
		s.capture(t.record.clone())
	}
}

// Error records that the traced operation failed. It may be called once,
// before End, and does not end the tracer.
func (s *SDK) Error(h TracerHandle, class, message string) {
	t, ok := s.ownedTracer(h, "error")
	if !ok {
		return
	}
	if t.errored {
		s.usageError("error: error already recorded for tracer")
		return
	}
	if !s.validOptional("error", class, message) {
		return
	}
	t.errored = true
	t.record.Error = &ErrorInfo{Class: class, Message: message}
}

// outgoingTracer resolves a started, outgoing-taggable tracer.
func (s *SDK) outgoingTracer(h TracerHandle) (*tracer, bool) {
	t, ok := s.ownedTracer(h, "outgoing tag")
	if !ok {
		return nil, false
	}
	if !t.record.Kind.OutgoingTaggable() {
		s.usageError("outgoing tag: tracer kind " + t.record.Kind.String() + " is not outgoing taggable")
		return nil, false
	}
	if t.state != stateStarted {
		s.usageError("outgoing tag: tracer not started")
		return nil, false
	}
	return t, true
}

// OutgoingStringTag returns the string tag of a started, outgoing-taggable
// tracer, or "" otherwise. Repeated calls return the same value.
func (s *SDK) OutgoingStringTag(h TracerHandle) string {
	t, ok := s.outgoingTracer(h)
	if !ok {
		return ""
	}
	if t.stringTag == "" {
		t.stringTag = encodeStringTag(t.outgoingContext())
	}
	return t.stringTag
}

// OutgoingByteTag returns the byte tag of a started, outgoing-taggable
// tracer, or nil otherwise. Repeated calls return equal values.
func (s *SDK) OutgoingByteTag(h TracerHandle) []byte {
	t, ok := s.outgoingTracer(h)
	if !ok {
		return nil
	}
	if t.byteTag == nil {
		t.byteTag = encodeByteTag(t.outgoingContext())
	}
	out := make([]byte, len(t.byteTag))
	copy(out, t.byteTag)
	return out
}

// CopyOutgoingStringTag writes the NUL-terminated string tag into buf.
// Call with an empty buf to learn the required size, which includes the
// terminator. A non-empty buf that is too small gets a NUL at offset zero.
// written never counts the terminator.
func (s *SDK) CopyOutgoingStringTag(h TracerHandle, buf []byte) (written, required int) {
	return copyString(s.OutgoingStringTag(h), buf)
}

// CopyOutgoingByteTag writes the byte tag into buf if it fits entirely.
// required is always the full tag size.
func (s *SDK) CopyOutgoingByteTag(h TracerHandle, buf []byte) (written, required int) {
	return copyBytes(s.OutgoingByteTag(h), buf)
}

// SetIncomingTag sets the single incoming tag of an incoming-taggable tracer
// before it starts. An empty or malformed tag clears it.
func (s *SDK) SetIncomingTag(h TracerHandle, tag Tag) {
	t, ok := s.ownedTracer(h, "incoming tag")
	if !ok {
		return
	}
	if !t.record.Kind.IncomingTaggable() {
		s.usageError("incoming tag: tracer kind " + t.record.Kind.String() + " is not incoming taggable")
		return
	}
	if t.state != stateCreated {
		s.usageError("incoming tag: tracer already started")
		return
	}

	c, ok := decodeTag(tag)
	if !ok {
		if !tag.IsEmpty() {
			s.diagnose(SeverityWarning, "incoming tag: malformed tag ignored")
		}
		t.incoming = tagContext{}
		t.hasIncoming = false
		return
	}
	t.incoming = c
	t.hasIncoming = true
}

// SetIncomingStringTag is SetIncomingTag with the string form.
func (s *SDK) SetIncomingStringTag(h TracerHandle, tag string) {
	s.SetIncomingTag(h, StringTag(tag))
}

// SetIncomingByteTag is SetIncomingTag with the byte form.
func (s *SDK) SetIncomingByteTag(h TracerHandle, tag []byte) {
	s.SetIncomingTag(h, ByteTag(tag))
}
