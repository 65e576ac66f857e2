package incall

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UI действия, учитываемые метриками
const (
	actionStartUI      = "start"
	actionFullScreen   = "full_screen"
	actionFinish       = "finish"
	actionForceRestart = "force_restart"
	actionCleanup      = "cleanup"
	actionDeferred     = "deferred"
)

// Metrics метрики Presenter. Нулевой указатель допустим.
type Metrics struct {
	transitions *prometheus.CounterVec
	uiActions   *prometheus.CounterVec
}

// NewMetrics создает метрики и регистрирует их в reg (nil - без регистрации)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incallui",
			Subsystem: "presenter",
			Name:      "state_transitions_total",
			Help:      "InCallState transitions",
		}, []string{"from", "to"}),
		uiActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "incallui",
			Subsystem: "presenter",
			Name:      "ui_actions_total",
			Help:      "UI lifecycle actions taken by the presenter",
		}, []string{"action"}),
	}
}

func (m *Metrics) transition(from, to InCallState) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (m *Metrics) uiAction(action string) {
	if m == nil {
		return
	}
	m.uiActions.WithLabelValues(action).Inc()
}
