package calllist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics метрики списка вызовов. Нулевой указатель допустим и ничего не делает.
type Metrics struct {
	tracked           prometheus.Gauge
	scheduledRemovals *prometheus.CounterVec
	removed           prometheus.Counter
	notifications     *prometheus.CounterVec
}

// NewMetrics создает метрики и регистрирует их в reg.
// При reg == nil метрики создаются без регистрации.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		tracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "incallui",
			Subsystem: "call_list",
			Name:      "calls_tracked",
			Help:      "Number of calls currently held by the call list",
		}),
		scheduledRemovals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incallui",
			Subsystem: "call_list",
			Name:      "scheduled_removals_total",
			Help:      "Deferred removals of disconnected calls by disconnect cause",
		}, []string{"cause"}),
		removed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "incallui",
			Subsystem: "call_list",
			Name:      "removed_total",
			Help:      "Calls removed from the call list",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incallui",
			Subsystem: "call_list",
			Name:      "notifications_total",
			Help:      "Listener notifications by channel",
		}, []string{"channel"}),
	}
}

func (m *Metrics) setTracked(n int) {
	if m == nil {
		return
	}
	m.tracked.Set(float64(n))
}

func (m *Metrics) removalScheduled(cause string) {
	if m == nil {
		return
	}
	m.scheduledRemovals.WithLabelValues(cause).Inc()
}

func (m *Metrics) callRemoved() {
	if m == nil {
		return
	}
	m.removed.Inc()
}

func (m *Metrics) notified(channel string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel).Inc()
}
