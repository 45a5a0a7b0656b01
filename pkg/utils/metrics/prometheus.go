package metrics

import (
	"time"

	"github.com/m-mizutani/catapult/pkg/domain/model"
	"github.com/m-mizutani/catapult/pkg/domain/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exposes pipeline metrics through a prometheus registry
type PrometheusRecorder struct {
	triggers      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageResults  *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// NewPrometheus registers pipeline metrics on the given registerer
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		triggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: types.ServiceName,
			Name:      "triggers_total",
			Help:      "Accepted release triggers by kind",
		}, []string{"kind"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: types.ServiceName,
			Name:      "stage_duration_seconds",
			Help:      "Stage execution time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"stage"}),
		stageResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: types.ServiceName,
			Name:      "stage_results_total",
			Help:      "Stage outcomes by stage and result",
		}, []string{"stage", "result"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: types.ServiceName,
			Name:      "runs_total",
			Help:      "Finished pipeline runs by status",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: types.ServiceName,
			Name:      "run_duration_seconds",
			Help:      "Pipeline run time in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (x *PrometheusRecorder) RecordTrigger(kind types.TriggerKind) {
	x.triggers.WithLabelValues(string(kind)).Inc()
}

func (x *PrometheusRecorder) RecordStage(name types.StageName, status model.StageStatus, d time.Duration) {
	x.stageResults.WithLabelValues(string(name), string(status)).Inc()
	if status == model.StageStatusSucceeded || status == model.StageStatusFailed {
		x.stageDuration.WithLabelValues(string(name)).Observe(d.Seconds())
	}
}

func (x *PrometheusRecorder) RecordRun(status model.RunStatus, d time.Duration) {
	x.runs.WithLabelValues(string(status)).Inc()
	x.runDuration.Observe(d.Seconds())
}
