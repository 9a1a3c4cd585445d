// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Operations *prometheus.CounterVec
	Sales      prometheus.Counter
	Revenue    prometheus.Counter
	CartLines  prometheus.Gauge
	CartTotal  prometheus.Gauge
	Halted     prometheus.Gauge
	Stock      *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "operations_total",
			Help:      "Engine operations by op and result (ok, refused).",
		}, []string{"op", "result"}),
		Sales: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "sales_total",
			Help:      "Committed sales.",
		}),
		Revenue: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pos",
			Name:      "revenue_centavos_total",
			Help:      "Sum of committed sale totals in minor units.",
		}),
		CartLines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "pos",
			Name:      "cart_lines",
			Help:      "Lines in the open cart.",
		}),
		CartTotal: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "pos",
			Name:      "cart_total_centavos",
			Help:      "Total of the open cart in minor units.",
		}),
		Halted: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "pos",
			Name:      "engine_halted",
			Help:      "1 while the engine refuses mutations until restart.",
		}),
		Stock: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pos",
			Name:      "item_stock_units",
			Help:      "Units on the shelf per catalog item.",
		}, []string{"item_id"}),
	}
}

// Attach subscribes m to e and seeds the gauges from the current snapshot.
func (m *Metrics) Attach(e *pos.Engine) func() {
	m.observeSnapshot(e.Get())
	return e.Subscribe(m.Observe)
}

// Observe is a pos.Listener.
func (m *Metrics) Observe(ev pos.Event) {
	result := "ok"
	if ev.Kind == pos.EventRefused {
		result = "refused"
	}
	m.Operations.WithLabelValues(string(ev.Op), result).Inc()

	if ev.Kind == pos.EventSaleCommitted && ev.Sale != nil {
		m.Sales.Inc()
		m.Revenue.Add(float64(ev.Sale.Total))
	}
	if ev.Kind == pos.EventCatalogChanged {
		m.Stock.Reset()
	}
	m.observeSnapshot(ev.Snapshot)
}

func (m *Metrics) observeSnapshot(s pos.Snapshot) {
	m.CartLines.Set(float64(len(s.Cart)))
	m.CartTotal.Set(float64(s.Total))
	if s.State == pos.StateHalted {
		m.Halted.Set(1)
	} else {
		m.Halted.Set(0)
	}
	for _, it := range s.Catalog {
		m.Stock.WithLabelValues(it.ID).Set(float64(it.Stock))
	}
}
