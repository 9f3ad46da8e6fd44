package fallback

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// orchestratorMetrics holds all Prometheus metrics owned by the orchestrator.
// A fresh instance is registered per Orchestrator so tests can inject their
// own prometheus.Registry without polluting the default one.
type orchestratorMetrics struct {
	// attemptsTotal counts individual model attempts, partitioned by model
	// and outcome ("ok", "rate_limited", "unavailable", "transient", "fatal").
	attemptsTotal *prometheus.CounterVec

	// generationsTotal counts whole orchestration calls, partitioned by
	// outcome ("ok", "rejected", "exhausted", "fatal").
	generationsTotal *prometheus.CounterVec

	// exhausted is 1 while the full hierarchy is rate-limited, 0 otherwise.
	exhausted prometheus.Gauge
}

// newOrchestratorMetrics registers all orchestrator metrics against reg.
func newOrchestratorMetrics(reg prometheus.Registerer) *orchestratorMetrics {
	factory := promauto.With(reg)

	return &orchestratorMetrics{
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "fallback",
			Name:      "model_attempts_total",
			Help:      "Total model attempts, partitioned by model and outcome.",
		}, []string{"model", "outcome"}),

		generationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexus",
			Subsystem: "fallback",
			Name:      "generations_total",
			Help:      "Total orchestration calls, partitioned by outcome.",
		}, []string{"outcome"}),

		exhausted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nexus",
			Subsystem: "fallback",
			Name:      "exhausted",
			Help:      "1 while every model in the hierarchy is rate-limited, 0 otherwise.",
		}),
	}
}
