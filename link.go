package linkz

import "bytes"

const (
	linkMagic   = 'L'
	linkVersion = 1
	linkSize    = 2 + 8 + 16 + 8
)

// CreateInProcessLink captures the active tracer of the calling goroutine.
// The link can resume the trace on another goroutine of this process through
// CreateInProcessLinkTracer. Returns nil when no tracer is active.
func (s *SDK) CreateInProcessLink() []byte {
	t := s.stacks.top(goroutineID())
	if t == nil {
		return nil
	}
	out := make([]byte, 0, linkSize)
	out = append(out, linkMagic, linkVersion)
	out = append(out, s.linkNonce[:]...)
	out = append(out, t.record.TraceID[:]...)
	out = append(out, t.record.SpanID[:]...)
	return out
}

// CopyInProcessLink writes the link into buf if it fits entirely. required
// is zero when no tracer is active.
func (s *SDK) CopyInProcessLink(buf []byte) (written, required int) {
	return copyBytes(s.CreateInProcessLink(), buf)
}

// CreateInProcessLinkTracer creates a tracer that continues the linked trace
// on the calling goroutine once started. Empty links, links from another
// process and corrupted links yield InvalidHandle.
func (s *SDK) CreateInProcessLinkTracer(link []byte) TracerHandle {
	if !s.tracerCreationAllowed() {
		return TracerHandle(InvalidHandle)
	}
	c, ok := s.decodeLink(link)
	if !ok {
		if len(link) > 0 {
			s.usageError("in-process link: invalid link")
		}
		return TracerHandle(InvalidHandle)
	}
	return s.newTracer(KindInProcessLink, Record{}, nil, &c)
}

func (s *SDK) decodeLink(link []byte) (tagContext, bool) {
	if len(link) != linkSize || link[0] != linkMagic || link[1] != linkVersion {
		return tagContext{}, false
	}
	if !bytes.Equal(link[2:10], s.linkNonce[:]) {
		return tagContext{}, false
	}
	var c tagContext
	copy(c.traceID[:], link[10:26])
	copy(c.spanID[:], link[26:34])
	if !c.valid() {
		return tagContext{}, false
	}
	return c, true
}
