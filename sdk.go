package linkz

import (
	"crypto/rand"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/trace"
)

// SDK owns tracers, info objects and goroutine context stacks, and forwards
// captured records to its Agent.
// Safe for concurrent use by multiple goroutines; individual tracers are not.
//
//nolint:govet // Field order optimized for functionality over memory
type SDK struct {
	agent           Agent
	registry        *registry
	clock           clockz.Clock
	diagnostics     DiagnosticFunc
	traceIDPool     *IDPool[trace.TraceID]
	spanIDPool      *IDPool[trace.SpanID]
	stacks          stacks
	stats           counters
	maxStringLength int
	idPoolSize      int
	idPoolOnce      sync.Once
	linkNonce       [8]byte
}

type counters struct {
	tracersCreated  atomic.Uint64
	tracersEnded    atomic.Uint64
	liveTracers     atomic.Int64
	liveInfos       atomic.Int64
	recordsCaptured atomic.Uint64
	recordsDropped  atomic.Uint64
	usageErrors     atomic.Uint64
	agentPanics     atomic.Uint64
}

// Stats is a point-in-time view of SDK activity.
type Stats struct {
	TracersCreated   uint64
	TracersEnded     uint64
	LiveTracers      int64
	LiveInfoObjects  int64
	ActiveGoroutines int
	RecordsCaptured  uint64
	RecordsDropped   uint64
	UsageErrors      uint64
	AgentPanics      uint64
}

// Option configures an SDK.
type Option func(*SDK)

// WithClock sets the clock used for tracer timestamps.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(s *SDK) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithDiagnostics sets the callback receiving usage errors.
func WithDiagnostics(fn DiagnosticFunc) Option {
	return func(s *SDK) {
		s.diagnostics = fn
	}
}

// WithMaxStringLength sets the longest accepted string argument in bytes.
func WithMaxStringLength(n int) Option {
	return func(s *SDK) {
		if n > 0 {
			s.maxStringLength = n
		}
	}
}

// WithIDPoolSize sets how many trace and span ids are generated ahead of time.
// Zero disables background generation.
func WithIDPoolSize(n int) Option {
	return func(s *SDK) {
		if n >= 0 {
			s.idPoolSize = n
		}
	}
}

// New creates an SDK reporting to agent. A nil agent behaves as an agent
// that was never initialized.
func New(agent Agent, opts ...Option) *SDK {
	s := &SDK{
		agent:           agent,
		registry:        newRegistry(),
		clock:           clockz.RealClock,
		maxStringLength: DefaultMaxStringLength,
		idPoolSize:      runtime.NumCPU() * defaultIDPoolMultiplier,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := rand.Read(s.linkNonce[:]); err != nil {
		id := newSpanID()
		copy(s.linkNonce[:], id[:])
	}
	return s
}

// ensureIDPools initializes ID pools if not already created.
func (s *SDK) ensureIDPools() {
	s.idPoolOnce.Do(func() {
		s.traceIDPool = NewIDPool(s.idPoolSize, newTraceID)
		s.spanIDPool = NewIDPool(s.idPoolSize, newSpanID)
	})
}

func (s *SDK) generateTraceID() trace.TraceID {
	s.ensureIDPools()
	return s.traceIDPool.Get()
}

func (s *SDK) generateSpanID() trace.SpanID {
	s.ensureIDPools()
	return s.spanIDPool.Get()
}

// Close stops background id generation. Tracers keep working after Close.
func (s *SDK) Close() {
	s.ensureIDPools()
	s.traceIDPool.Close()
	s.spanIDPool.Close()
}

// AgentState returns the state reported by the agent.
func (s *SDK) AgentState() AgentState {
	if s.agent == nil {
		return AgentStateNotInitialized
	}
	state := AgentStateError
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.stats.agentPanics.Add(1)
				s.diagnose(SeverityError, fmt.Sprintf("agent state query panicked: %v", r))
			}
		}()
		state = s.agent.State()
	}()
	return state
}

// tracerCreationAllowed gates new tracers on an active agent.
func (s *SDK) tracerCreationAllowed() bool {
	return s.AgentState() == AgentStateActive
}

// passiveCreationAllowed gates info objects; a temporarily inactive agent still accepts them.
func (s *SDK) passiveCreationAllowed() bool {
	switch s.AgentState() {
	case AgentStateActive, AgentStateTemporarilyInactive:
		return true
	default:
		return false
	}
}

// capture hands a record to the agent. A panicking agent is contained.
func (s *SDK) capture(record Record) {
	if s.AgentState() != AgentStateActive {
		s.stats.recordsDropped.Add(1)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.stats.agentPanics.Add(1)
			s.stats.recordsDropped.Add(1)
			s.diagnose(SeverityError, fmt.Sprintf("agent capture panicked: %v", r))
		}
	}()
	s.agent.Capture(record)
	s.stats.recordsCaptured.Add(1)
}

// Stats returns a snapshot of SDK counters.
func (s *SDK) Stats() Stats {
	return Stats{
		TracersCreated:   s.stats.tracersCreated.Load(),
		TracersEnded:     s.stats.tracersEnded.Load(),
		LiveTracers:      s.stats.liveTracers.Load(),
		LiveInfoObjects:  s.stats.liveInfos.Load(),
		ActiveGoroutines: s.stacks.count(),
		RecordsCaptured:  s.stats.recordsCaptured.Load(),
		RecordsDropped:   s.stats.recordsDropped.Load(),
		UsageErrors:      s.stats.usageErrors.Load(),
		AgentPanics:      s.stats.agentPanics.Load(),
	}
}

// validRequired checks that every value is non-empty and within the length limit.
func (s *SDK) validRequired(what string, values ...string) bool {
	for _, v := range values {
		if v == "" {
			s.usageError(what + ": required argument is empty")
			return false
		}
		if len(v) > s.maxStringLength {
			s.usageError(what + ": argument exceeds maximum length")
			return false
		}
	}
	return true
}

// validOptional checks only the length limit.
func (s *SDK) validOptional(what string, values ...string) bool {
	for _, v := range values {
		if len(v) > s.maxStringLength {
			s.usageError(what + ": argument exceeds maximum length")
			return false
		}
	}
	return true
}
