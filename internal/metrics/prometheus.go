package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type prometheusObserver struct {
	syncSuccess   prometheus.Counter
	syncFailure   *prometheus.CounterVec
	escalations   prometheus.Counter
	statusUpdates *prometheus.CounterVec
	sweepDuration *prometheus.SummaryVec
}

var (
	syncSuccessCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderbridge_sync_success_total",
		Help: "Total number of successfully forward-synced orders",
	})
	syncFailureCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderbridge_sync_failure_total",
		Help: "Total number of failed sync attempts by failure kind",
	}, []string{"kind"})
	escalationCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderbridge_dead_letter_total",
		Help: "Total number of orders escalated to the dead-letter store",
	})
	statusUpdateCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderbridge_status_updates_total",
		Help: "Total number of status updates applied by direction",
	}, []string{"direction"})
	sweepDurationSummary = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Name: "orderbridge_sweep_duration_seconds",
		Help: "Duration of reconciliation sweeps",
	}, []string{"sweep"})
)

func NewPrometheusObserver() Observer {
	return &prometheusObserver{
		syncSuccess:   syncSuccessCounter,
		syncFailure:   syncFailureCounter,
		escalations:   escalationCounter,
		statusUpdates: statusUpdateCounter,
		sweepDuration: sweepDurationSummary,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (p *prometheusObserver) RecordSyncSuccess() {
	p.syncSuccess.Inc()
}

func (p *prometheusObserver) RecordSyncFailure(kind string) {
	p.syncFailure.WithLabelValues(kind).Inc()
}

func (p *prometheusObserver) RecordEscalation() {
	p.escalations.Inc()
}

func (p *prometheusObserver) RecordStatusUpdate(direction string) {
	p.statusUpdates.WithLabelValues(direction).Inc()
}

func (p *prometheusObserver) ObserveSweepDuration(sweep string, seconds float64) {
	p.sweepDuration.WithLabelValues(sweep).Observe(seconds)
}
