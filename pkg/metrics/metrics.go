package metrics

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
)

// ErrLabelCountMismatch is returned when the number of label values doesn't match the defined labels.
var ErrLabelCountMismatch = errors.New("label count mismatch")

// ErrDuplicateMetric is returned when registering a metric with a name that is already registered.
var ErrDuplicateMetric = errors.New("duplicate metric name")

// atomicFloat64 provides atomic operations for float64 values.
// It stores the bits of the float64 as a uint64 for atomic access.
type atomicFloat64 struct {
	bits uint64
}

// Load atomically loads and returns the float64 value.
func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&a.bits))
}

// Add atomically adds delta to the float64 value using CAS loop.
func (a *atomicFloat64) Add(delta float64) {
	for {
		old := atomic.LoadUint64(&a.bits)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&a.bits, old, math.Float64bits(newVal)) {
			return
		}
	}
}

// Store atomically stores the float64 value.
func (a *atomicFloat64) Store(val float64) {
	atomic.StoreUint64(&a.bits, math.Float64bits(val))
}

// Sample represents a single metric sample with labels.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// Metric is the interface implemented by counters and gauges.
type Metric interface {
	// Name returns the metric name.
	Name() string
	// Help returns the help text.
	Help() string
	// Collect returns all metric samples for exposition.
	Collect() []Sample
}

// value is one labeled cell of a counter or gauge.
type value struct {
	labels map[string]string
	v      atomicFloat64
}

// vec holds the shared label bookkeeping for counters and gauges.
type vec struct {
	name       string
	help       string
	labelNames []string
	mu         sync.RWMutex
	values     map[string]*value
}

func newVec(name, help string, labelNames []string) vec {
	return vec{
		name:       name,
		help:       help,
		labelNames: labelNames,
		values:     make(map[string]*value),
	}
}

func (v *vec) cell(labelValues ...string) (*value, error) {
	if len(labelValues) != len(v.labelNames) {
		return nil, fmt.Errorf("%w: %s expected %d labels, got %d",
			ErrLabelCountMismatch, v.name, len(v.labelNames), len(labelValues))
	}

	key := labelsKey(labelValues)
	v.mu.RLock()
	c, ok := v.values[key]
	v.mu.RUnlock()

	if !ok {
		labels := make(map[string]string, len(v.labelNames))
		for i, name := range v.labelNames {
			labels[name] = labelValues[i]
		}

		v.mu.Lock()
		// Double-check after acquiring write lock
		c, ok = v.values[key]
		if !ok {
			c = &value{labels: labels}
			v.values[key] = c
		}
		v.mu.Unlock()
	}
	return c, nil
}

func (v *vec) collect() []Sample {
	v.mu.RLock()
	defer v.mu.RUnlock()

	samples := make([]Sample, 0, len(v.values))
	for _, c := range v.values {
		samples = append(samples, Sample{Name: v.name, Labels: c.labels, Value: c.v.Load()})
	}
	return samples
}

// Counter is a monotonically increasing metric.
type Counter struct {
	vec
}

func newCounter(name, help string, labelNames []string) *Counter {
	return &Counter{vec: newVec(name, help, labelNames)}
}

// Name returns the metric name.
func (c *Counter) Name() string { return c.vec.name }

// Help returns the help text.
func (c *Counter) Help() string { return c.vec.help }

// Inc increments the counter cell for the given label values by 1.
func (c *Counter) Inc(labelValues ...string) {
	if cell, err := c.cell(labelValues...); err == nil {
		cell.v.Add(1)
	}
}

// Value returns the current value of the cell for the given labels.
func (c *Counter) Value(labelValues ...string) float64 {
	cell, err := c.cell(labelValues...)
	if err != nil {
		return 0
	}
	return cell.v.Load()
}

// Collect returns all metric samples.
func (c *Counter) Collect() []Sample { return c.collect() }

// Gauge is a metric that can arbitrarily go up and down.
type Gauge struct {
	vec
}

func newGauge(name, help string, labelNames []string) *Gauge {
	return &Gauge{vec: newVec(name, help, labelNames)}
}

// Name returns the metric name.
func (g *Gauge) Name() string { return g.vec.name }

// Help returns the help text.
func (g *Gauge) Help() string { return g.vec.help }

// Set sets the gauge cell for the given label values.
func (g *Gauge) Set(val float64, labelValues ...string) {
	if cell, err := g.cell(labelValues...); err == nil {
		cell.v.Store(val)
	}
}

// Value returns the current value of the cell for the given labels.
func (g *Gauge) Value(labelValues ...string) float64 {
	cell, err := g.cell(labelValues...)
	if err != nil {
		return 0
	}
	return cell.v.Load()
}

// Collect returns all metric samples.
func (g *Gauge) Collect() []Sample { return g.collect() }

func labelsKey(values []string) string {
	key := ""
	for i, v := range values {
		if i > 0 {
			key += "\x00"
		}
		key += v
	}
	return key
}
