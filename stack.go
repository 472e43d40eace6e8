package linkz

import (
	"sync"

	"github.com/petermattis/goid"
)

// goroutineID identifies the calling goroutine.
func goroutineID() int64 {
	return goid.Get()
}

// contextStack holds the started tracers of one goroutine, innermost last.
// Only the owning goroutine reads or writes it.
type contextStack struct {
	entries []*tracer
}

func (s *contextStack) top() *tracer {
	if len(s.entries) == 0 {
		return nil
	}
	return s.entries[len(s.entries)-1]
}

func (s *contextStack) push(t *tracer) {
	s.entries = append(s.entries, t)
}

// remove drops t, searching from the top. Tracers ended out of order are
// removed from the middle.
func (s *contextStack) remove(t *tracer) bool {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i] == t {
			copy(s.entries[i:], s.entries[i+1:])
			s.entries[len(s.entries)-1] = nil
			s.entries = s.entries[:len(s.entries)-1]
			return true
		}
	}
	return false
}

// stacks maps goroutine ids to their context stacks. Entries are removed
// once a stack empties so finished goroutines do not pin memory.
type stacks struct {
	byGoroutine sync.Map // int64 -> *contextStack
}

// current returns the calling goroutine's stack, or nil if it has none.
func (s *stacks) current(gid int64) *contextStack {
	if v, ok := s.byGoroutine.Load(gid); ok {
		return v.(*contextStack)
	}
	return nil
}

// top returns the innermost started tracer of goroutine gid.
func (s *stacks) top(gid int64) *tracer {
	if cs := s.current(gid); cs != nil {
		return cs.top()
	}
	return nil
}

func (s *stacks) push(gid int64, t *tracer) {
	cs := s.current(gid)
	if cs == nil {
		cs = &contextStack{entries: make([]*tracer, 0, 4)}
		s.byGoroutine.Store(gid, cs)
	}
	cs.push(t)
}

func (s *stacks) remove(gid int64, t *tracer) bool {
	cs := s.current(gid)
	if cs == nil {
		return false
	}
	removed := cs.remove(t)
	if len(cs.entries) == 0 {
		s.byGoroutine.Delete(gid)
	}
	return removed
}

// count returns the number of goroutines with a non-empty stack.
func (s *stacks) count() int {
	n := 0
	s.byGoroutine.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
