package integration

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/linkz"
)

// TestNestingFollowsStackTop checks that a tracer links to whatever is on top
// of the goroutine's stack when it is created.
func TestNestingFollowsStackTop(t *testing.T) {
	sdk, collector := NewTestSDK(t)

	t1 := sdk.CreateCustomServiceTracer("t1", "svc")
	sdk.Start(t1)
	t2 := sdk.CreateCustomServiceTracer("t2", "svc")
	sdk.Start(t2)
	sdk.End(t2)
	t3 := sdk.CreateCustomServiceTracer("t3", "svc")
	sdk.Start(t3)
	sdk.End(t3)
	sdk.End(t1)

	records := collector.GetAll()
	require.Len(t, records, 3)
	a := NewTraceAnalyzer(records)
	require.Equal(t, 1, a.CountTrees(), a.String())

	r2, r3, r1 := records[0], records[1], records[2]
	assert.NoError(t, a.VerifyChain(r1, r2))
	assert.NoError(t, a.VerifyChain(r1, r3))
}

// TestGoroutinesKeepSeparateStacks runs request trees on many goroutines at
// once; no tree may pick up a parent from another goroutine.
func TestGoroutinesKeepSeparateStacks(t *testing.T) {
	sdk, collector := NewTestSDK(t)
	db := sdk.CreateDatabaseInfo("orders", linkz.VendorPostgreSQL, linkz.Channel{Type: linkz.ChannelTCPIP, Endpoint: "db:5432"})
	defer sdk.DeleteDatabaseInfo(db)

	const workers, requests = 16, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < requests; i++ {
				req := sdk.CreateCustomServiceTracer("handle", "orders")
				sdk.Start(req)
				q := sdk.CreateSQLDatabaseRequestTracer(db, "SELECT * FROM orders WHERE id = $1")
				sdk.Start(q)
				sdk.SetReturnedRowCount(q, 1)
				sdk.End(q)
				sdk.End(req)
			}
		}()
	}
	wg.Wait()

	records := collector.GetAll()
	require.Len(t, records, workers*requests*2)

	a := NewTraceAnalyzer(records)
	assert.Equal(t, workers*requests, a.CountTrees())
	assert.Len(t, a.TraceIDs(), workers*requests)
	for _, tree := range BuildRecordTree(records) {
		require.Len(t, tree.Children, 1)
		assert.Equal(t, linkz.KindDatabaseRequest, tree.Children[0].Record.Kind)
	}

	stats := sdk.Stats()
	assert.Zero(t, stats.UsageErrors)
	assert.Zero(t, stats.LiveTracers)
	assert.Zero(t, stats.ActiveGoroutines)
}

// TestLinkFansOutToWorkers resumes one request on several worker goroutines.
func TestLinkFansOutToWorkers(t *testing.T) {
	sdk, collector := NewTestSDK(t)

	req := sdk.CreateCustomServiceTracer("batch", "importer")
	sdk.Start(req)
	link := sdk.CreateInProcessLink()
	require.NotEmpty(t, link)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := sdk.CreateInProcessLinkTracer(link)
			sdk.Start(h)
			step := sdk.CreateCustomServiceTracer("chunk", "importer")
			sdk.Start(step)
			sdk.End(step)
			sdk.End(h)
		}()
	}
	wg.Wait()
	sdk.End(req)

	records := collector.GetAll()
	require.Len(t, records, 9)
	root := records[8]

	a := NewTraceAnalyzer(records)
	assert.Equal(t, 1, a.CountTrees(), a.String())
	assert.Len(t, a.TraceIDs(), 1)
	for _, r := range records {
		if r.Kind == linkz.KindInProcessLink {
			assert.Equal(t, root.SpanID, r.ParentID)
		}
	}
}
