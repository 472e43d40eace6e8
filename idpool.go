package linkz

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// IDPool manages a pool of pre-generated IDs to amortize crypto/rand overhead.
type IDPool[T any] struct {
	factory func() T
	ids     chan T
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewIDPool creates a new ID pool with the specified capacity.
// A capacity of zero disables background generation; Get then always calls factory.
func NewIDPool[T any](capacity int, factory func() T) *IDPool[T] {
	if capacity < 0 {
		capacity = 0
	}
	pool := &IDPool[T]{
		ids:     make(chan T, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	if capacity > 0 {
		go pool.refill()
	}
	return pool
}

// Get retrieves an ID from the pool or generates one if pool is empty.
func (p *IDPool[T]) Get() T {
	select {
	case id := <-p.ids:
		return id
	default:
		// Pool empty, generate directly (fallback for burst load).
		return p.factory()
	}
}

// refill maintains the pool by generating IDs in background.
func (p *IDPool[T]) refill() {
	for {
		select {
		case <-p.stopCh:
			return
		default:
			select {
			case p.ids <- p.factory():
			case <-p.stopCh:
				return
			}
		}
	}
}

// Close stops background generation. Get keeps working after Close.
func (p *IDPool[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}

// newTraceID returns a random, valid trace id.
func newTraceID() trace.TraceID {
	for {
		u, err := uuid.NewRandom()
		if err != nil {
			// Fallback to a time-based name if the entropy source fails.
			u = uuid.NewSHA1(uuid.NameSpaceOID, []byte(time.Now().Format(time.RFC3339Nano)))
		}
		if id := trace.TraceID(u); id.IsValid() {
			return id
		}
	}
}

// newSpanID returns a random, valid span id.
func newSpanID() trace.SpanID {
	var id trace.SpanID
	for !id.IsValid() {
		if _, err := rand.Read(id[:]); err != nil {
			u := newTraceID()
			copy(id[:], u[8:])
		}
	}
	return id
}
