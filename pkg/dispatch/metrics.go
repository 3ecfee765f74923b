package dispatch

import "github.com/getlogtx/logtx/pkg/metrics"

// Metrics bundles the pipeline's instrumentation. All fields are
// optional as a set: a nil *Metrics disables instrumentation.
type Metrics struct {
	// Fragments counts every fragment pulled from the source.
	Fragments *metrics.Counter

	// Transactions counts completed transactions by kind.
	Transactions *metrics.Counter

	// Faults counts builder and delivery faults by kind
	// (parse, consistency, source, panic).
	Faults *metrics.Counter

	// Degenerate counts completed backend records dropped for having
	// accumulated no fragments.
	Degenerate *metrics.Counter

	// ActiveDescriptors tracks the number of descriptors currently
	// bound in the transaction table.
	ActiveDescriptors *metrics.Gauge
}

// NewMetrics registers the pipeline metrics on the registry.
func NewMetrics(reg *metrics.Registry) (*Metrics, error) {
	fragments, err := reg.NewCounter("logtx_fragments_total", "Fragments pulled from the source")
	if err != nil {
		return nil, err
	}
	transactions, err := reg.NewCounter("logtx_transactions_total", "Completed transactions", "kind")
	if err != nil {
		return nil, err
	}
	faults, err := reg.NewCounter("logtx_faults_total", "Faults isolated during dispatch", "kind")
	if err != nil {
		return nil, err
	}
	degenerate, err := reg.NewCounter("logtx_degenerate_total", "Degenerate backend records dropped")
	if err != nil {
		return nil, err
	}
	active, err := reg.NewGauge("logtx_active_descriptors", "Descriptors currently bound in the table")
	if err != nil {
		return nil, err
	}
	return &Metrics{
		Fragments:         fragments,
		Transactions:      transactions,
		Faults:            faults,
		Degenerate:        degenerate,
		ActiveDescriptors: active,
	}, nil
}

func (m *Metrics) fragment() {
	if m != nil {
		m.Fragments.Inc()
	}
}

func (m *Metrics) transaction(kind string) {
	if m != nil {
		m.Transactions.Inc(kind)
	}
}

func (m *Metrics) fault(kind string) {
	if m != nil {
		m.Faults.Inc(kind)
	}
}

func (m *Metrics) degenerate() {
	if m != nil {
		m.Degenerate.Inc()
	}
}

func (m *Metrics) active(n int) {
	if m != nil {
		m.ActiveDescriptors.Set(float64(n))
	}
}
