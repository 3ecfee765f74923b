package metrics

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestCounter(t *testing.T) {
	reg := NewRegistry()
	c, err := reg.NewCounter("requests_total", "Total requests", "kind")
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}

	c.Inc("client")
	c.Inc("client")
	c.Inc("backend")

	if v := c.Value("client"); v != 2 {
		t.Errorf("client = %g, want 2", v)
	}
	if v := c.Value("backend"); v != 1 {
		t.Errorf("backend = %g, want 1", v)
	}

	samples := c.Collect()
	if len(samples) != 2 {
		t.Errorf("Collect returned %d samples, want 2", len(samples))
	}
}

func TestCounter_LabelMismatchIgnored(t *testing.T) {
	reg := NewRegistry()
	c, _ := reg.NewCounter("x_total", "x", "kind")
	c.Inc() // wrong arity, dropped
	if len(c.Collect()) != 0 {
		t.Error("mismatched labels created a cell")
	}
}

func TestGauge(t *testing.T) {
	reg := NewRegistry()
	g, err := reg.NewGauge("active", "Active descriptors")
	if err != nil {
		t.Fatalf("NewGauge: %v", err)
	}
	g.Set(5)
	g.Set(3)
	if v := g.Value(); v != 3 {
		t.Errorf("gauge = %g, want 3", v)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.NewCounter("dup", "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.NewGauge("dup", "second"); !errors.Is(err, ErrDuplicateMetric) {
		t.Errorf("duplicate registration: %v", err)
	}
}

func TestRegistry_WriteTo(t *testing.T) {
	reg := NewRegistry()
	c, _ := reg.NewCounter("b_total", "b", "kind")
	g, _ := reg.NewGauge("a_current", "a")
	c.Inc("client")
	g.Set(7)

	var buf bytes.Buffer
	if err := reg.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `b_total{kind="client"} 1`) {
		t.Errorf("labeled counter missing from output:\n%s", out)
	}
	if !strings.Contains(out, "a_current 7") {
		t.Errorf("gauge missing from output:\n%s", out)
	}
	// Sorted by name: a_current before b_total.
	if strings.Index(out, "a_current") > strings.Index(out, "b_total") {
		t.Errorf("output not sorted:\n%s", out)
	}
}

func TestCounter_ConcurrentInc(t *testing.T) {
	reg := NewRegistry()
	c, _ := reg.NewCounter("par_total", "p", "kind")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				c.Inc("x")
			}
		}()
	}
	wg.Wait()

	if v := c.Value("x"); v != 8000 {
		t.Errorf("concurrent count = %g, want 8000", v)
	}
}
