package linkz

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector is an in-memory Agent that buffers captured records for export.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Collector struct {
	records      []Record
	recordsCh    chan Record
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	state        atomic.Int32
	name         string
	mu           sync.Mutex
	closed       atomic.Bool
	syncMode     atomic.Bool
	closeOnce    sync.Once
}

// NewCollector creates an active collector with the specified name and buffer size.
func NewCollector(name string, bufferSize int) *Collector {
	if bufferSize < 0 {
		bufferSize = 0
	}
	c := &Collector{
		name:      name,
		records:   make([]Record, 0, 8),
		recordsCh: make(chan Record, bufferSize),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.state.Store(int32(AgentStateActive))
	go c.start()
	return c
}

// Name returns the collector name.
func (c *Collector) Name() string {
	return c.name
}

// start runs the collector's main loop, receiving records from the channel.
func (c *Collector) start() {
	defer close(c.done)

	for {
		select {
		case <-c.stopCh:
			// Drain remaining records before shutdown.
			for {
				select {
				case record := <-c.recordsCh:
					c.buffer(record)
				default:
					return
				}
			}
		case record := <-c.recordsCh:
			c.buffer(record)
		}
	}
}

// Close shuts down the collector. Buffered records stay exportable and the
// collector reports AgentStateNotInitialized afterwards.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.state.Store(int32(AgentStateNotInitialized))
		close(c.stopCh)
		select {
		case <-c.done:
		case <-time.After(100 * time.Millisecond):
		}
	})
}

// State reports the collector's agent state.
func (c *Collector) State() AgentState {
	return AgentState(c.state.Load())
}

// SetState overrides the reported agent state, e.g. to simulate an inactive agent.
func (c *Collector) SetState(state AgentState) {
	c.state.Store(int32(state))
}

// Capture buffers a record with backpressure protection.
// If the internal channel is full, the record is dropped and the drop counter is incremented.
// In sync mode, records are buffered directly for deterministic testing.
func (c *Collector) Capture(record Record) {
	if c.closed.Load() {
		c.droppedCount.Add(1)
		return
	}

	if c.syncMode.Load() {
		c.buffer(record)
		return
	}

	select {
	case c.recordsCh <- record:
	default:
		c.droppedCount.Add(1)
	}
}

// buffer appends a record. Growth doubles small buffers and grows large ones by half.
func (c *Collector) buffer(record Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) >= cap(c.records) {
		currentCap := cap(c.records)
		var newCap int
		if currentCap < 1024 {
			newCap = currentCap * 2
		} else {
			newCap = currentCap + currentCap/2
		}
		if newCap < 32 {
			newCap = 32
		}
		grown := make([]Record, len(c.records), newCap)
		copy(grown, c.records)
		c.records = grown
	}
	c.records = append(c.records, record.clone())
}

// Export returns a copy of all buffered records and clears the internal buffer.
// The returned slice is safe to modify without affecting the collector.
func (c *Collector) Export() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) == 0 {
		return nil
	}

	result := make([]Record, len(c.records))
	for i := range c.records {
		result[i] = c.records[i].clone()
	}

	// Only shrink if buffer is very oversized to avoid allocation churn.
	if cap(c.records) > 256 && len(c.records) < cap(c.records)/8 {
		newCap := cap(c.records) / 4
		if newCap < 32 {
			newCap = 32
		}
		c.records = make([]Record, 0, newCap)
	} else {
		c.records = c.records[:0]
	}

	return result
}

// Count returns the current number of buffered records.
func (c *Collector) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// DroppedCount returns the total number of records dropped due to backpressure.
func (c *Collector) DroppedCount() int64 {
	return c.droppedCount.Load()
}

// SetSyncMode enables synchronous collection for testing.
// When enabled, records are buffered directly without using the channel.
func (c *Collector) SetSyncMode(sync bool) {
	c.syncMode.Store(sync)
}

// Reset clears all buffered records and resets the drop counter.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = c.records[:0]
	c.droppedCount.Store(0)
}
