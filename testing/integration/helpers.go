package integration

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zoobzio/linkz"
)

// MockCollector wraps a real collector with test utilities.
// Provides synchronous collection and verification helpers.
//
//nolint:govet // Field alignment optimized for test helper readability
type MockCollector struct {
	exported []linkz.Record
	*linkz.Collector
	t  *testing.T
	mu sync.Mutex
}

// NewMockCollector creates a collector for testing.
func NewMockCollector(t *testing.T, name string, bufferSize int) *MockCollector {
	collector := linkz.NewCollector(name, bufferSize)
	collector.SetSyncMode(true)
	return &MockCollector{
		Collector: collector,
		t:         t,
		exported:  make([]linkz.Record, 0),
	}
}

// NewTestSDK returns an SDK reporting into a fresh MockCollector. Both are
// closed when the test ends.
func NewTestSDK(t *testing.T, opts ...linkz.Option) (*linkz.SDK, *MockCollector) {
	t.Helper()
	collector := NewMockCollector(t, "integration", 1000)
	sdk := linkz.New(collector, append([]linkz.Option{linkz.WithIDPoolSize(0)}, opts...)...)
	t.Cleanup(func() {
		sdk.Close()
		collector.Close()
	})
	return sdk, collector
}

// GetAll returns every record exported so far without losing any.
func (m *MockCollector) GetAll() []linkz.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current := m.Collector.Export(); len(current) > 0 {
		m.exported = append(m.exported, current...)
	}
	all := make([]linkz.Record, len(m.exported))
	copy(all, m.exported)
	return all
}

// WaitForRecords waits until at least expected records were captured.
func (m *MockCollector) WaitForRecords(expected int, timeout time.Duration) []linkz.Record {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		if records := m.GetAll(); len(records) >= expected {
			return records
		}
		<-ticker.C
	}

	records := m.GetAll()
	m.t.Errorf("Timeout waiting for records: expected %d, got %d", expected, len(records))
	return records
}

// RecordName is a short label for a record, used in trees and failures.
func RecordName(r linkz.Record) string {
	switch {
	case r.Remote != nil:
		return r.Kind.String() + " " + r.Remote.Service + "." + r.Remote.Method
	case r.Database != nil:
		return r.Kind.String() + " " + r.Database.Statement
	case r.Web != nil:
		return r.Kind.String() + " " + r.Web.Method + " " + r.Web.URL
	case r.Message != nil:
		return r.Kind.String() + " " + r.Message.System.Destination
	default:
		return r.Kind.String()
	}
}

// RecordTree represents a hierarchical view of records.
type RecordTree struct {
	Record   linkz.Record
	Children []*RecordTree
}

// BuildRecordTree constructs a forest from a flat record list. Records whose
// parent was not captured become roots.
func BuildRecordTree(records []linkz.Record) []*RecordTree {
	nodes := make(map[trace.SpanID]*RecordTree, len(records))
	for i := range records {
		nodes[records[i].SpanID] = &RecordTree{Record: records[i]}
	}

	roots := make([]*RecordTree, 0)
	for i := range records {
		node := nodes[records[i].SpanID]
		if parent, ok := nodes[records[i].ParentID]; ok && records[i].HasParent() {
			parent.Children = append(parent.Children, node)
			continue
		}
		roots = append(roots, node)
	}
	return roots
}

// PrintRecordTree formats a forest for debugging.
func PrintRecordTree(trees []*RecordTree) string {
	var sb strings.Builder
	for _, tree := range trees {
		printTreeNode(&sb, tree, 0)
	}
	return sb.String()
}

func printTreeNode(sb *strings.Builder, node *RecordTree, depth int) {
	fmt.Fprintf(sb, "%s%s [%s] (%.2fms)\n",
		strings.Repeat("  ", depth), RecordName(node.Record), node.Record.Origin, node.Record.Duration.Seconds()*1000)
	for _, child := range node.Children {
		printTreeNode(sb, child, depth+1)
	}
}

// TraceAnalyzer provides trace-level assertions.
type TraceAnalyzer struct {
	records []linkz.Record
	byKind  map[linkz.Kind][]linkz.Record
	trees   []*RecordTree
}

// NewTraceAnalyzer creates an analyzer for a set of records.
func NewTraceAnalyzer(records []linkz.Record) *TraceAnalyzer {
	a := &TraceAnalyzer{
		records: records,
		byKind:  make(map[linkz.Kind][]linkz.Record),
	}
	for _, r := range records {
		a.byKind[r.Kind] = append(a.byKind[r.Kind], r)
	}
	a.trees = BuildRecordTree(records)
	return a
}

// One returns the single record of a kind, failing the test otherwise.
func (a *TraceAnalyzer) One(t *testing.T, kind linkz.Kind) linkz.Record {
	t.Helper()
	got := a.byKind[kind]
	if len(got) != 1 {
		t.Fatalf("expected one %s record, got %d\n%s", kind, len(got), a)
	}
	return got[0]
}

// CountTrees returns the number of root records.
func (a *TraceAnalyzer) CountTrees() int {
	return len(a.trees)
}

// TraceIDs returns the distinct trace ids seen.
func (a *TraceAnalyzer) TraceIDs() map[trace.TraceID]int {
	ids := make(map[trace.TraceID]int)
	for _, r := range a.records {
		ids[r.TraceID]++
	}
	return ids
}

// VerifyChain checks that each record is the direct child of the one before.
func (*TraceAnalyzer) VerifyChain(chain ...linkz.Record) error {
	if len(chain) < 2 {
		return fmt.Errorf("chain requires at least 2 records")
	}
	for i := 1; i < len(chain); i++ {
		parent, child := chain[i-1], chain[i]
		if child.ParentID != parent.SpanID {
			return fmt.Errorf("broken chain: %s is not child of %s", RecordName(child), RecordName(parent))
		}
		if child.TraceID != parent.TraceID {
			return fmt.Errorf("trace id mismatch: %s=%s, %s=%s",
				RecordName(parent), parent.TraceID, RecordName(child), child.TraceID)
		}
	}
	return nil
}

func (a *TraceAnalyzer) String() string {
	return PrintRecordTree(a.trees)
}
