package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"Vid2News/internal/domain"
	"Vid2News/internal/ports"
)

// Recorder exports stage and job outcomes as Prometheus metrics.
type Recorder struct {
	stageUnits  *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
}

var _ ports.StageRecorder = (*Recorder)(nil)

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		stageUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vid2news",
			Name:      "stage_units_total",
			Help:      "Units processed per pipeline stage by outcome.",
		}, []string{"desk", "stage", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vid2news",
			Name:      "job_runs_total",
			Help:      "Job runs by result.",
		}, []string{"desk", "job", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vid2news",
			Name:      "job_duration_seconds",
			Help:      "Wall time of job runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"desk", "job"}),
	}
	reg.MustRegister(r.stageUnits, r.runs, r.runDuration)
	return r
}

// RecordStage adds a stage report to the unit counters.
func (r *Recorder) RecordStage(desk string, report domain.StageReport) {
	r.stageUnits.WithLabelValues(desk, report.Stage, "succeeded").Add(float64(report.Succeeded))
	r.stageUnits.WithLabelValues(desk, report.Stage, "failed").Add(float64(report.Failed))
	r.stageUnits.WithLabelValues(desk, report.Stage, "skipped").Add(float64(report.Skipped))
}

// RecordRun counts one job run and observes its duration.
func (r *Recorder) RecordRun(desk, job string, started time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.runs.WithLabelValues(desk, job, result).Inc()
	r.runDuration.WithLabelValues(desk, job).Observe(time.Since(started).Seconds())
}
