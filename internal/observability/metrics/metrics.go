package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the resolution pipeline.
type PipelineMetrics struct {
	requestsTotal   *prometheus.CounterVec
	segmentsTotal   *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	dispatchLatency *prometheus.HistogramVec
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crmbot",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Total transcripts handled",
		}, []string{"status"}),
		segmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crmbot",
			Subsystem: "pipeline",
			Name:      "segments_total",
			Help:      "Total classified segments",
		}, []string{"intent", "source", "validation"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crmbot",
			Subsystem: "dispatch",
			Name:      "attempts_total",
			Help:      "Total CRM dispatch results",
		}, []string{"intent", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crmbot",
			Subsystem: "pipeline",
			Name:      "request_latency_seconds",
			Help:      "Latency of full transcript resolution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crmbot",
			Subsystem: "dispatch",
			Name:      "latency_seconds",
			Help:      "Latency of CRM dispatch calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.segmentsTotal, m.dispatchTotal, m.requestLatency, m.dispatchLatency)
	return m
}

func (m *PipelineMetrics) ObserveRequest(status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(status).Inc()
	m.requestLatency.WithLabelValues(status).Observe(seconds)
}

func (m *PipelineMetrics) ObserveSegment(intent, source, validation string) {
	if m == nil {
		return
	}
	m.segmentsTotal.WithLabelValues(intent, source, validation).Inc()
}

func (m *PipelineMetrics) ObserveDispatch(intent, status string, seconds float64) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(intent, status).Inc()
	m.dispatchLatency.WithLabelValues(intent).Observe(seconds)
}
