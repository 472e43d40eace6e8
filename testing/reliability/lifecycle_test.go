package reliability

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zoobzio/linkz"
)

// Reliability tests hammer the SDK with misuse and churn and check that its
// bookkeeping stays consistent. They only run when LINKZ_RELIABILITY_LEVEL is set.

func TestSDKReliability(t *testing.T) {
	config := getReliabilityConfig()

	switch config.Level {
	case "basic":
		t.Run("info_churn", func(t *testing.T) { testInfoChurn(t, 10, 200) })
		t.Run("misuse_storm", func(t *testing.T) { testMisuseStorm(t, 10, 200) })
		t.Run("agent_flapping", func(t *testing.T) { testAgentFlapping(t, 10, 200*time.Millisecond) })
	case "stress":
		t.Run("info_churn", func(t *testing.T) { testInfoChurn(t, config.MaxGoroutines, 5000) })
		t.Run("misuse_storm", func(t *testing.T) { testMisuseStorm(t, config.MaxGoroutines, 5000) })
		t.Run("agent_flapping", func(t *testing.T) { testAgentFlapping(t, config.MaxGoroutines, config.Duration) })
	default:
		t.Skip("LINKZ_RELIABILITY_LEVEL not set, skipping reliability tests")
	}
}

func newSDK(t *testing.T) (*linkz.SDK, *linkz.Collector) {
	t.Helper()
	collector := linkz.NewCollector("reliability", 10000)
	sdk := linkz.New(collector)
	t.Cleanup(func() {
		sdk.Close()
		collector.Close()
	})
	return sdk, collector
}

// testInfoChurn creates and deletes info objects while other goroutines trace
// against them. Storage must be released exactly once per object.
func testInfoChurn(t *testing.T, goroutines, iterations int) {
	sdk, _ := newSDK(t)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				db := sdk.CreateDatabaseInfo("churn", linkz.VendorSQLite, linkz.Channel{Type: linkz.ChannelInProcess})
				h := sdk.CreateSQLDatabaseRequestTracer(db, "SELECT 1")
				sdk.DeleteDatabaseInfo(db)
				sdk.Start(h)
				sdk.End(h)
			}
		}()
	}
	wg.Wait()

	stats := sdk.Stats()
	assert.Zero(t, stats.LiveInfoObjects)
	assert.Zero(t, stats.LiveTracers)
	assert.Zero(t, stats.UsageErrors)
}

// testMisuseStorm ends tracers from goroutines that do not own them. Every
// foreign end leaks its tracer and nothing may panic.
func testMisuseStorm(t *testing.T, goroutines, iterations int) {
	sdk, _ := newSDK(t)

	handles := make(chan linkz.TracerHandle, goroutines*iterations)
	var owners sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		owners.Add(1)
		go func() {
			defer owners.Done()
			for i := 0; i < iterations; i++ {
				h := sdk.CreateCustomServiceTracer("storm", "reliability")
				sdk.Start(h)
				handles <- h
			}
		}()
	}
	owners.Wait()
	close(handles)

	var foreign atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for h := range handles {
				assert.NotPanics(t, func() {
					sdk.End(h)
					sdk.Error(h, "x", "y")
				})
				foreign.Add(1)
			}
		}()
	}
	wg.Wait()

	stats := sdk.Stats()
	assert.Equal(t, int64(goroutines*iterations), stats.LiveTracers)
	assert.Equal(t, uint64(2*foreign.Load()), stats.UsageErrors)
	assert.Zero(t, stats.TracersEnded)
}

// testAgentFlapping toggles the agent state while goroutines trace. Every
// started and ended tracer is either captured or counted as dropped.
func testAgentFlapping(t *testing.T, goroutines int, duration time.Duration) {
	collector := linkz.NewCollector("reliability", 0)
	collector.SetSyncMode(true)
	sdk := linkz.New(collector)
	defer sdk.Close()
	defer collector.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				h := sdk.CreateCustomServiceTracer("flap", "reliability")
				sdk.Start(h)
				sdk.End(h)
				runtime.Gosched()
			}
		}()
	}

	deadline := time.After(duration)
	states := []linkz.AgentState{linkz.AgentStateActive, linkz.AgentStateTemporarilyInactive}
loop:
	for i := 0; ; i++ {
		select {
		case <-deadline:
			break loop
		case <-time.After(time.Millisecond):
			collector.SetState(states[i%len(states)])
		}
	}
	close(stop)
	wg.Wait()

	stats := sdk.Stats()
	assert.Equal(t, stats.TracersCreated, stats.TracersEnded)
	assert.Equal(t, stats.TracersEnded, stats.RecordsCaptured+stats.RecordsDropped)
	assert.Equal(t, int(stats.RecordsCaptured), collector.Count())
}
