package rules

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — счетчики движка правил. Слой метрик читает их через /metrics
// отдельным запросом, поэтому они живут в registry, а не в полях движка.
type Metrics struct {
	Evaluated prometheus.Counter
	Outcomes  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Evaluated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rule_engine_evaluated_total",
			Help: "Number of candidate rules evaluated against transition events.",
		}),
		Outcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rule_engine_executions_total",
			Help: "Rule execution outcomes by terminal bucket.",
		}, []string{"outcome"}),
	}
}
