package harness

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the run's Prometheus collectors, kept on a private registry
// so that they can be exported as a node_exporter textfile. A nil *Metrics
// records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	foldsCompleted prometheus.Counter
	foldsSkipped   *prometheus.CounterVec
	foldDuration   prometheus.Histogram
	foldAUC        *prometheus.GaugeVec
	meanAUC        prometheus.Gauge
	meanAccuracy   prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		foldsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: "subjectcv_folds_completed_total",
			Help: "Folds that produced an AUC and accuracy",
		}),
		foldsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "subjectcv_folds_skipped_total",
			Help: "Folds skipped because of a fold-local failure",
		}, []string{"reason"}),
		foldDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "subjectcv_fold_duration_seconds",
			Help:    "Wall time of one fold, training included",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10), // 10ms to ~43min
		}),
		foldAUC: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subjectcv_fold_auc",
			Help: "AUC of a completed fold by held-out subject",
		}, []string{"subject"}),
		meanAUC: f.NewGauge(prometheus.GaugeOpts{
			Name: "subjectcv_mean_auc",
			Help: "Mean AUC over completed folds",
		}),
		meanAccuracy: f.NewGauge(prometheus.GaugeOpts{
			Name: "subjectcv_mean_accuracy",
			Help: "Mean accuracy over completed folds",
		}),
	}
}

func (m *Metrics) foldCompleted(subject string, auc float64, d time.Duration) {
	if m == nil {
		return
	}
	m.foldsCompleted.Inc()
	m.foldDuration.Observe(d.Seconds())
	m.foldAUC.WithLabelValues(subject).Set(auc)
}

func (m *Metrics) foldSkipped(err error) {
	if m == nil {
		return
	}
	m.foldsSkipped.WithLabelValues(reason(err)).Inc()
}

func (m *Metrics) summary(s Summary) {
	if m == nil {
		return
	}
	m.meanAUC.Set(s.MeanAUC)
	m.meanAccuracy.Set(s.MeanAccuracy)
}

// WriteTextfile writes every collector to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
