package dispatch

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/getlogtx/logtx/pkg/fragment"
	"github.com/getlogtx/logtx/pkg/metrics"
	"github.com/getlogtx/logtx/pkg/source"
	"github.com/getlogtx/logtx/pkg/txn"
)

func clientFrag(fd int, tag, payload string) fragment.Fragment {
	return fragment.Fragment{Descriptor: fd, Role: fragment.RoleClient, Tag: tag, Payload: payload}
}

func backendFrag(fd int, tag, payload string) fragment.Fragment {
	return fragment.Fragment{Descriptor: fd, Role: fragment.RoleBackend, Tag: tag, Payload: payload}
}

// correlatedStream is one complete client transaction on fd 12
// referencing one complete backend transaction on fd 21.
func correlatedStream() []fragment.Fragment {
	return []fragment.Fragment{
		clientFrag(12, fragment.TagTxnStart, "192.0.2.10 54321 1001"),
		clientFrag(12, fragment.TagReqMethod, "GET"),
		clientFrag(12, fragment.TagReqURL, "/index.html"),
		clientFrag(12, fragment.TagReqHeader, "Host: example.org"),
		clientFrag(12, fragment.TagRoutineCall, "lookup"),
		clientFrag(12, fragment.TagRoutineReturn, "miss"),
		clientFrag(12, fragment.TagBackendRef, "21 d1 web1"),
		backendFrag(21, fragment.TagConnOpen, "web1 10.0.0.5 8080"),
		backendFrag(21, fragment.TagReqMethod, "GET"),
		backendFrag(21, fragment.TagRespStatus, "200"),
		backendFrag(21, fragment.TagConnReuse, "web1"),
		clientFrag(12, fragment.TagRespStatus, "200"),
		clientFrag(12, fragment.TagTxnEnd, "1001 1700000000.25 1700000000.75 0.001 0.4 0.099"),
	}
}

func collect(t *testing.T, frags []fragment.Fragment, opts Options) []txn.Record {
	t.Helper()
	var got []txn.Record
	d := New(nil, nil)
	err := d.Process(source.NewSliceSource(frags), func(rec txn.Record) {
		got = append(got, rec)
	}, opts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return got
}

func TestProcess_AggregatePolicy(t *testing.T) {
	got := collect(t, correlatedStream(), Options{Aggregate: true})

	if len(got) != 1 {
		t.Fatalf("delivered %d records, want 1", len(got))
	}
	ct, ok := got[0].(*txn.ClientTxn)
	if !ok {
		t.Fatalf("delivered %T, want *txn.ClientTxn", got[0])
	}
	if ct.Backend == nil {
		t.Fatal("client delivered without its backend reference")
	}
	if ct.Backend.BackendName != "web1" || ct.Backend.DirectorName != "d1" {
		t.Errorf("backend identity = %s/%s", ct.Backend.BackendName, ct.Backend.DirectorName)
	}
	if ct.Backend.Status != 200 {
		t.Errorf("backend status = %d", ct.Backend.Status)
	}
}

func TestProcess_IndependentDelivery(t *testing.T) {
	got := collect(t, correlatedStream(), Options{Aggregate: false})

	if len(got) != 2 {
		t.Fatalf("delivered %d records, want 2", len(got))
	}
	// The backend completes first in the stream.
	if got[0].Kind() != txn.KindBackend || got[1].Kind() != txn.KindClient {
		t.Errorf("delivery order = %s, %s", got[0].Kind(), got[1].Kind())
	}
}

func TestProcess_AdministrativeFiltering(t *testing.T) {
	d := New(nil, nil)
	frags := []fragment.Fragment{
		{Descriptor: 33, Role: fragment.RoleClient, Tag: fragment.TagSessionOpen, Payload: "192.0.2.1 33"},
		{Descriptor: 33, Role: fragment.RoleClient, Tag: fragment.TagSessionStats, Payload: "1 2 3"},
		{Descriptor: 33, Role: fragment.RoleClient, Tag: fragment.TagSessionClose, Payload: "timeout"},
	}
	if err := d.Process(source.NewSliceSource(frags), nil, Options{}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if d.Builder().Table().Lookup(33) != nil {
		t.Error("administrative fragments created a table entry")
	}
}

func TestProcess_NonRequestCallback(t *testing.T) {
	var connEvents []fragment.Fragment
	opts := Options{
		NonRequest: func(f fragment.Fragment) { connEvents = append(connEvents, f) },
	}
	frags := append([]fragment.Fragment{
		{Descriptor: 0, Role: fragment.RoleNone, Tag: "cli", Payload: "ping"},
	}, correlatedStream()...)

	d := New(nil, nil)
	if err := d.Process(source.NewSliceSource(frags), nil, opts); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(connEvents) != 1 || connEvents[0].Payload != "ping" {
		t.Fatalf("connection events = %v", connEvents)
	}
}

func TestProcess_FaultIsolation(t *testing.T) {
	var logBuf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := metrics.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatal(err)
	}

	// First transaction carries an unparsable status; the second is
	// valid and must still be delivered.
	frags := []fragment.Fragment{
		clientFrag(3, fragment.TagTxnStart, "192.0.2.2 2222 3003"),
		clientFrag(3, fragment.TagRespStatus, "abc"),
		clientFrag(3, fragment.TagTxnEnd, "3003 1700000001 1700000002 0 0.5 0.1"),
		clientFrag(4, fragment.TagTxnStart, "192.0.2.3 3333 4004"),
		clientFrag(4, fragment.TagRespStatus, "200"),
		clientFrag(4, fragment.TagTxnEnd, "4004 1700000003 1700000004 0 0.5 0.1"),
	}

	var got []txn.Record
	d := New(log, m)
	err = d.Process(source.NewSliceSource(frags), func(rec txn.Record) {
		got = append(got, rec)
	}, Options{Aggregate: true})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("delivered %d records, want 2", len(got))
	}
	if got[1].(*txn.ClientTxn).XID != "4004" {
		t.Errorf("second delivery XID = %q", got[1].(*txn.ClientTxn).XID)
	}
	if !strings.Contains(logBuf.String(), "parse fault") {
		t.Error("parse fault not logged")
	}
	if v := m.Faults.Value("parse"); v != 1 {
		t.Errorf("parse fault count = %g, want 1", v)
	}
	if v := m.Transactions.Value("client"); v != 2 {
		t.Errorf("client transaction count = %g, want 2", v)
	}
}

func TestProcess_ConsistencyFaultDistinguishable(t *testing.T) {
	var logBuf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reg := metrics.NewRegistry()
	m, _ := NewMetrics(reg)

	frags := []fragment.Fragment{
		backendFrag(5, fragment.TagConnOpen, "web1"),
		clientFrag(5, fragment.TagTxnStart, "192.0.2.1 1 5005"),
	}
	d := New(log, m)
	if err := d.Process(source.NewSliceSource(frags), nil, Options{}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(logBuf.String(), "consistency fault") {
		t.Error("consistency fault not logged distinctly")
	}
	if v := m.Faults.Value("consistency"); v != 1 {
		t.Errorf("consistency fault count = %g, want 1", v)
	}
}

func TestProcess_ConsumerPanicContained(t *testing.T) {
	frags := correlatedStream()
	calls := 0
	d := New(nil, nil)
	err := d.Process(source.NewSliceSource(frags), func(rec txn.Record) {
		calls++
		panic("boom")
	}, Options{Aggregate: false})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if calls != 2 {
		t.Errorf("consumer called %d times, want 2 (panic must not stop the stream)", calls)
	}
}

func TestProcess_SourceErrorPropagates(t *testing.T) {
	d := New(nil, nil)
	err := d.Process(&failingSource{}, nil, Options{})
	if err == nil || !strings.Contains(err.Error(), "fragment source") {
		t.Fatalf("Process error = %v", err)
	}
}

type failingSource struct{}

func (f *failingSource) Next() (fragment.Fragment, error) {
	return fragment.Fragment{}, errors.New("disk on fire")
}

func TestProcess_PayloadPatternFilter(t *testing.T) {
	filter, err := NewTxnFilter("example\\.org", "", false)
	if err != nil {
		t.Fatal(err)
	}
	got := collect(t, correlatedStream(), Options{Aggregate: true, Filter: filter})
	if len(got) != 1 {
		t.Fatalf("matching payload pattern delivered %d, want 1", len(got))
	}

	filter, err = NewTxnFilter("no-such-payload", "", false)
	if err != nil {
		t.Fatal(err)
	}
	got = collect(t, correlatedStream(), Options{Aggregate: true, Filter: filter})
	if len(got) != 0 {
		t.Fatalf("non-matching payload pattern delivered %d, want 0", len(got))
	}
}

func TestProcess_ExpressionFilter(t *testing.T) {
	tests := []struct {
		expr string
		want int
	}{
		{`status == 200 && miss`, 1},
		{`hit`, 0},
		{`backendName == "web1"`, 1},
		{`status >= 500`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			filter, err := NewTxnFilter("", tt.expr, false)
			if err != nil {
				t.Fatal(err)
			}
			got := collect(t, correlatedStream(), Options{Aggregate: true, Filter: filter})
			if len(got) != tt.want {
				t.Errorf("delivered %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestNewTxnFilter_CompileErrors(t *testing.T) {
	if _, err := NewTxnFilter("(", "", false); err == nil {
		t.Error("invalid payload pattern accepted")
	}
	if _, err := NewTxnFilter("", "status ==", false); err == nil {
		t.Error("invalid expression accepted")
	}
}

func TestChunks_StopSignal(t *testing.T) {
	d := New(nil, nil)
	frags := correlatedStream()
	seen := 0
	err := d.Chunks(source.NewSliceSource(frags), func(f fragment.Fragment) bool {
		seen++
		return seen == 3
	})
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if seen != 3 {
		t.Errorf("consumer saw %d fragments, want 3", seen)
	}
}

func TestChunks_DrainsToEnd(t *testing.T) {
	d := New(nil, nil)
	frags := correlatedStream()
	seen := 0
	err := d.Chunks(source.NewSliceSource(frags), func(f fragment.Fragment) bool {
		seen++
		return false
	})
	if err != nil {
		t.Fatalf("Chunks: %v", err)
	}
	if seen != len(frags) {
		t.Errorf("consumer saw %d fragments, want %d", seen, len(frags))
	}
}
