package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getlogtx/logtx/pkg/dispatch"
	"github.com/getlogtx/logtx/pkg/fragment"
	"github.com/getlogtx/logtx/pkg/history"
	"github.com/getlogtx/logtx/pkg/metrics"
	"github.com/getlogtx/logtx/pkg/source"
	"github.com/getlogtx/logtx/pkg/txn"
)

// ============================================================================
// Test Helpers
// ============================================================================

// writeDump persists fragments as a JSONL dump the way the proxy's log
// persister does, so the replay path gets exercised end to end.
func writeDump(t *testing.T, frags []fragment.Fragment) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frags.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	for _, fr := range frags {
		_, err := fmt.Fprintf(f, "{\"descriptor\":%d,\"role\":%q,\"tag\":%q,\"payload\":%q}\n",
			fr.Descriptor, fr.Role, fr.Tag, fr.Payload)
		require.NoError(t, err)
	}
	return path
}

func cf(fd int, tag, payload string) fragment.Fragment {
	return fragment.Fragment{Descriptor: fd, Role: fragment.RoleClient, Tag: tag, Payload: payload}
}

func bf(fd int, tag, payload string) fragment.Fragment {
	return fragment.Fragment{Descriptor: fd, Role: fragment.RoleBackend, Tag: tag, Payload: payload}
}

// interleavedStream simulates the shared event log: two client
// transactions and one backend transaction, fragments interleaved
// across descriptors, with session chatter and a connection-level
// event mixed in.
func interleavedStream() []fragment.Fragment {
	return []fragment.Fragment{
		{Descriptor: 0, Role: fragment.RoleNone, Tag: "cli", Payload: "ping"},
		cf(10, fragment.TagSessionOpen, "192.0.2.10 10"),
		cf(10, fragment.TagTxnStart, "192.0.2.10 40001 1001"),
		cf(11, fragment.TagTxnStart, "192.0.2.11 40002 1002"),
		cf(10, fragment.TagReqMethod, "GET"),
		cf(11, fragment.TagReqMethod, "POST"),
		cf(10, fragment.TagReqURL, "/cached"),
		cf(11, fragment.TagReqURL, "/submit"),
		cf(10, fragment.TagRoutineCall, "lookup"),
		cf(10, fragment.TagRoutineReturn, "hit"),
		cf(11, fragment.TagRoutineCall, "lookup"),
		cf(11, fragment.TagRoutineReturn, "miss"),
		cf(11, fragment.TagBackendRef, "21 d1 web1"),
		bf(21, fragment.TagConnOpen, "web1 10.0.0.5 8080"),
		bf(21, fragment.TagReqMethod, "POST"),
		bf(21, fragment.TagReqURL, "/submit"),
		bf(21, fragment.TagRespStatus, "201"),
		bf(21, fragment.TagConnReuse, "web1"),
		cf(10, fragment.TagRespStatus, "200"),
		cf(11, fragment.TagRespStatus, "201"),
		cf(10, fragment.TagRespHeader, "Age: 37"),
		cf(10, fragment.TagTxnEnd, "1001 1700000000.1 1700000000.2 0.0001 0.05 0.01"),
		cf(11, fragment.TagTxnEnd, "1002 1700000000.1 1700000000.9 0.0002 0.7 0.02"),
		cf(10, fragment.TagSessionClose, "eof"),
	}
}

// ============================================================================
// End-to-end reconstruction
// ============================================================================

func TestReplayDump_Aggregated(t *testing.T) {
	path := writeDump(t, interleavedStream())

	src, err := source.Open(path)
	require.NoError(t, err)
	defer src.Close()

	reg := metrics.NewRegistry()
	m, err := dispatch.NewMetrics(reg)
	require.NoError(t, err)

	store := history.NewMemoryStore(100)
	d := dispatch.New(nil, m)

	var delivered []*txn.ClientTxn
	err = d.Process(src, func(rec txn.Record) {
		store.Log(rec)
		delivered = append(delivered, rec.(*txn.ClientTxn))
	}, dispatch.Options{Aggregate: true})
	require.NoError(t, err)

	require.Len(t, delivered, 2)

	hitTxn, missTxn := delivered[0], delivered[1]
	assert.Equal(t, "1001", hitTxn.XID)
	assert.True(t, hitTxn.Hit())
	assert.Nil(t, hitTxn.Backend)
	if age, ok := hitTxn.RespHeaders.Get("age"); assert.True(t, ok) {
		assert.Equal(t, "37", age)
	}
	assert.InDelta(t, 0.1, hitTxn.CompletedAt.Sub(hitTxn.StartedAt).Seconds(), 1e-6)

	assert.Equal(t, "1002", missTxn.XID)
	assert.True(t, missTxn.Miss())
	require.NotNil(t, missTxn.Backend)
	assert.Equal(t, "web1", missTxn.Backend.BackendName)
	assert.Equal(t, "d1", missTxn.Backend.DirectorName)
	assert.Equal(t, 201, missTxn.Backend.Status)
	assert.Equal(t, "/submit", missTxn.Backend.URL)

	// Pipeline accounting: 2 clients delivered, 1 backend completed
	// but not delivered standalone under aggregation.
	assert.Equal(t, float64(2), m.Transactions.Value("client"))
	assert.Equal(t, float64(0), m.Transactions.Value("backend"))

	// History captured both deliveries.
	assert.Equal(t, 2, store.Count())
	assert.Len(t, store.List(&history.Filter{Method: "POST"}), 1)
}

func TestReplayDump_Independent(t *testing.T) {
	path := writeDump(t, interleavedStream())

	src, err := source.Open(path)
	require.NoError(t, err)
	defer src.Close()

	d := dispatch.New(nil, nil)
	var kinds []txn.Kind
	err = d.Process(src, func(rec txn.Record) {
		kinds = append(kinds, rec.Kind())
	}, dispatch.Options{Aggregate: false})
	require.NoError(t, err)

	// Backend completes before either client.
	require.Equal(t, []txn.Kind{txn.KindBackend, txn.KindClient, txn.KindClient}, kinds)
}

func TestReplayDump_ReaderControlsCompose(t *testing.T) {
	path := writeDump(t, interleavedStream())

	src, err := source.Open(path)
	require.NoError(t, err)
	defer src.Close()

	// Restrict the stream to header fragments only; no transaction can
	// activate, so nothing is delivered and any bound record stays
	// dormant.
	filtered, err := source.Filtered(src, source.Options{IncludeTagPattern: "-header$"})
	require.NoError(t, err)

	d := dispatch.New(nil, nil)
	err = d.Process(filtered, func(rec txn.Record) {
		t.Fatalf("unexpected delivery: %v", rec)
	}, dispatch.Options{})
	require.NoError(t, err)

	if rec := d.Builder().Table().Lookup(10); rec != nil {
		assert.False(t, rec.Active())
		assert.Empty(t, rec.Fragments())
	}
}

func TestReplayDump_ExpressionFilter(t *testing.T) {
	path := writeDump(t, interleavedStream())

	src, err := source.Open(path)
	require.NoError(t, err)
	defer src.Close()

	filter, err := dispatch.NewTxnFilter("", `miss && backendName == "web1"`, false)
	require.NoError(t, err)

	d := dispatch.New(nil, nil)
	var got []*txn.ClientTxn
	err = d.Process(src, func(rec txn.Record) {
		got = append(got, rec.(*txn.ClientTxn))
	}, dispatch.Options{Aggregate: true, Filter: filter})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "1002", got[0].XID)
}

func TestDescriptorReuse_BackendThenClient(t *testing.T) {
	frags := []fragment.Fragment{
		bf(7, fragment.TagConnOpen, "web1 10.0.0.5 8080"),
		bf(7, fragment.TagRespStatus, "200"),
		bf(7, fragment.TagConnClose, "web1"),
		cf(7, fragment.TagTxnStart, "192.0.2.99 40099 9009"),
		cf(7, fragment.TagRespStatus, "404"),
		cf(7, fragment.TagTxnEnd, "9009 1700000010 1700000011 0 0.1 0.01"),
	}

	d := dispatch.New(nil, nil)
	var got []txn.Record
	err := d.Process(source.NewSliceSource(frags), func(rec txn.Record) {
		got = append(got, rec)
	}, dispatch.Options{Aggregate: false})
	require.NoError(t, err)

	require.Len(t, got, 2)
	bt := got[0].(*txn.BackendTxn)
	ct := got[1].(*txn.ClientTxn)
	assert.Equal(t, 200, bt.Status)
	assert.Equal(t, 404, ct.Status)
	assert.Equal(t, 7, bt.Descriptor())
	assert.Equal(t, 7, ct.Descriptor())
	assert.Equal(t, "web1", bt.BackendName)
	// No field bleed across the reuse boundary.
	assert.Zero(t, ct.ReqHeaders.Len())
	assert.Equal(t, "9009", ct.XID)
}

func TestFaultIsolation_EndToEnd(t *testing.T) {
	frags := []fragment.Fragment{
		cf(3, fragment.TagTxnStart, "192.0.2.2 2222 3003"),
		cf(3, fragment.TagRespStatus, "abc"),
		cf(3, fragment.TagTxnEnd, "3003 1700000001 1700000002 0 0.5 0.1"),
		cf(4, fragment.TagTxnStart, "192.0.2.3 3333 4004"),
		cf(4, fragment.TagRespStatus, "200"),
		cf(4, fragment.TagTxnEnd, "4004 1700000003 1700000004 0 0.5 0.1"),
	}

	reg := metrics.NewRegistry()
	m, err := dispatch.NewMetrics(reg)
	require.NoError(t, err)

	d := dispatch.New(nil, m)
	var got []*txn.ClientTxn
	err = d.Process(source.NewSliceSource(frags), func(rec txn.Record) {
		got = append(got, rec.(*txn.ClientTxn))
	}, dispatch.Options{Aggregate: true})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "4004", got[1].XID)
	assert.Equal(t, float64(1), m.Faults.Value("parse"))
}
