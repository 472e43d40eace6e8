package linkz

import "sync"

// Handle is an opaque reference to an SDK-managed object. Zero is never a
// valid handle.
type Handle uint64

// InvalidHandle is returned by creation functions that could not create an object.
const InvalidHandle Handle = 0

// TracerHandle references a tracer.
type TracerHandle Handle

// DatabaseInfoHandle references a database info object.
type DatabaseInfoHandle Handle

// WebApplicationInfoHandle references a web application info object.
type WebApplicationInfoHandle Handle

// MessagingSystemInfoHandle references a messaging system info object.
type MessagingSystemInfoHandle Handle

type objectKind uint8

const (
	objectNone objectKind = iota
	objectTracer
	objectDatabaseInfo
	objectWebApplicationInfo
	objectMessagingSystemInfo
)

type slot struct {
	object any
	gen    uint32
	kind   objectKind
}

// registry maps handles to live objects. A handle packs the slot generation
// in the high 32 bits and slot index + 1 in the low 32 bits, so released or
// reused slots never resolve through an old handle.
//
// Safe for concurrent use by multiple goroutines.
type registry struct {
	slots []slot
	free  []uint32
	live  int
	mu    sync.RWMutex
}

func newRegistry() *registry {
	return &registry{
		slots: make([]slot, 0, 64),
	}
}

func packHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func unpackHandle(h Handle) (index, gen uint32, ok bool) {
	low := uint32(uint64(h) & 0xffffffff)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(uint64(h) >> 32), true
}

// create binds object to a fresh handle.
func (r *registry) create(kind objectKind, object any) Handle {
	if object == nil || kind == objectNone {
		return InvalidHandle
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		if uint64(len(r.slots)) >= 0xffffffff {
			return InvalidHandle
		}
		index = uint32(len(r.slots))
		r.slots = append(r.slots, slot{gen: 1})
	}

	s := &r.slots[index]
	s.object = object
	s.kind = kind
	r.live++

	return packHandle(index, s.gen)
}

// resolve returns the object behind h, or false if h is invalid, stale or
// of a different kind.
func (r *registry) resolve(h Handle, kind objectKind) (any, bool) {
	index, gen, ok := unpackHandle(h)
	if !ok {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if int(index) >= len(r.slots) {
		return nil, false
	}
	s := r.slots[index]
	if s.gen != gen || s.kind != kind || s.object == nil {
		return nil, false
	}
	return s.object, true
}

// release invalidates h and returns the object it referenced.
func (r *registry) release(h Handle, kind objectKind) (any, bool) {
	index, gen, ok := unpackHandle(h)
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if int(index) >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[index]
	if s.gen != gen || s.kind != kind || s.object == nil {
		return nil, false
	}

	object := s.object
	s.object = nil
	s.kind = objectNone
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	r.free = append(r.free, index)
	r.live--

	return object, true
}

// count returns the number of live handles.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live
}
