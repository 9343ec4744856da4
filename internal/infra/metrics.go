package infra

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects settlement observability counters.
type Metrics struct {
	settlementsTotal   *prometheus.CounterVec
	settlementDuration *prometheus.HistogramVec
	unitsSold          prometheus.Counter
	quoteVolume        prometheus.Counter
}

// NewMetrics registers settlement metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		settlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "custody",
				Subsystem: "settlement",
				Name:      "operations_total",
				Help:      "Total settlement operations by outcome",
			},
			[]string{"op", "outcome"},
		),
		settlementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "custody",
				Subsystem: "settlement",
				Name:      "operation_duration_seconds",
				Help:      "Settlement operation duration in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"op"},
		),
		unitsSold: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "custody",
				Subsystem: "settlement",
				Name:      "units_sold_total",
				Help:      "Total asset units sold",
			},
		),
		quoteVolume: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "custody",
				Subsystem: "settlement",
				Name:      "quote_volume_total",
				Help:      "Total quote currency volume in minor units",
			},
		),
	}
}

// ObserveOperation records one settlement operation and its duration.
func (m *Metrics) ObserveOperation(op string, err error, started time.Time) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.settlementsTotal.WithLabelValues(op, outcome).Inc()
	m.settlementDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// ObservePurchase records the volume of one committed purchase.
func (m *Metrics) ObservePurchase(quantity, totalCost uint64) {
	m.unitsSold.Add(float64(quantity))
	m.quoteVolume.Add(float64(totalCost))
}
