package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Registry holds named metrics and renders them for exposition.
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	ordered []Metric
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// NewCounter registers and returns a labeled counter.
func (r *Registry) NewCounter(name, help string, labelNames ...string) (*Counter, error) {
	c := newCounter(name, help, labelNames)
	if err := r.register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// NewGauge registers and returns a labeled gauge.
func (r *Registry) NewGauge(name, help string, labelNames ...string) (*Gauge, error) {
	g := newGauge(name, help, labelNames)
	if err := r.register(g); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Registry) register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metrics[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMetric, m.Name())
	}
	r.metrics[m.Name()] = m
	r.ordered = append(r.ordered, m)
	return nil
}

// Collect returns every sample from every registered metric, sorted by
// metric name then label string for deterministic output.
func (r *Registry) Collect() []Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var samples []Sample
	for _, m := range r.ordered {
		samples = append(samples, m.Collect()...)
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return labelString(samples[i].Labels) < labelString(samples[j].Labels)
	})
	return samples
}

// WriteTo renders all samples in a plain-text exposition format.
func (r *Registry) WriteTo(w io.Writer) error {
	for _, s := range r.Collect() {
		if _, err := fmt.Fprintf(w, "%s%s %g\n", s.Name, labelString(s.Labels), s.Value); err != nil {
			return err
		}
	}
	return nil
}

func labelString(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
