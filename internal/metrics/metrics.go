// Package metrics exposes the Prometheus instrumentation for this module,
// in the style of cyoung-stratux's fancontrol daemon
// (fancontrol_main/fancontrol.go): collectors held as fields of a Registry
// struct, updated by simple Inc/Observe calls scattered through the hot
// path. Metrics are purely observational — nothing in this package
// ever influences a decode, session, anomaly, or trajectory decision.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"remoteid/internal/anomaly"
	"remoteid/internal/model"
)

// Registry bundles every collector this module emits. Callers register it
// against their own *prometheus.Registry (or the global DefaultRegisterer)
// and feed it from the parser façade (frames, envelope matches, decode
// failures, tracked/expired UAVs) and the anomaly call site (anomalies).
type Registry struct {
	FramesTotal          *prometheus.CounterVec
	EnvelopeMatchesTotal *prometheus.CounterVec
	DecodeFailuresTotal  *prometheus.CounterVec
	AnomaliesTotal       *prometheus.CounterVec
	UAVsTrackedGauge     prometheus.Gauge
	UAVsExpiredTotal     prometheus.Counter
	DecodeDuration       prometheus.Histogram
}

// NewRegistry constructs a Registry with every collector instantiated but
// not yet registered anywhere.
func NewRegistry() *Registry {
	return &Registry{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remoteid",
			Name:      "frames_total",
			Help:      "Raw frames offered to the parser, by transport.",
		}, []string{"transport"}),

		EnvelopeMatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remoteid",
			Name:      "envelope_matches_total",
			Help:      "Frames whose transport envelope was recognized, by transport.",
		}, []string{"transport"}),

		DecodeFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remoteid",
			Name:      "decode_failures_total",
			Help:      "Decode failures, by error kind.",
		}, []string{"kind"}),

		AnomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "remoteid",
			Name:      "anomalies_total",
			Help:      "Anomalies emitted by the detector, by type.",
		}, []string{"type"}),

		UAVsTrackedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "remoteid",
			Name:      "uavs_tracked",
			Help:      "UAVs currently held in the session manager.",
		}),

		UAVsExpiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remoteid",
			Name:      "uavs_expired_total",
			Help:      "UAVs removed from the session manager by Cleanup due to timeout.",
		}),

		DecodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "remoteid",
			Name:      "decode_duration_seconds",
			Help:      "Time spent in Parser.Parse per frame.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
}

// MustRegister registers every collector against reg. It panics on
// duplicate registration, matching the package-level var-block pattern
// fancontrol.go uses for its own gauges and counter vecs.
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		r.FramesTotal,
		r.EnvelopeMatchesTotal,
		r.DecodeFailuresTotal,
		r.AnomaliesTotal,
		r.UAVsTrackedGauge,
		r.UAVsExpiredTotal,
		r.DecodeDuration,
	)
}

// ObserveFrame records a raw frame arrival for transport.
func (r *Registry) ObserveFrame(transport model.Transport) {
	r.FramesTotal.WithLabelValues(transport.String()).Inc()
}

// ObserveEnvelopeMatch records a recognized envelope for transport.
func (r *Registry) ObserveEnvelopeMatch(transport model.Transport) {
	r.EnvelopeMatchesTotal.WithLabelValues(transport.String()).Inc()
}

// ObserveDecodeFailure records a decode failure of the given kind.
func (r *Registry) ObserveDecodeFailure(kind model.ErrorKind) {
	r.DecodeFailuresTotal.WithLabelValues(kind.String()).Inc()
}

// ObserveAnomalies increments AnomaliesTotal once per anomaly, by type.
func (r *Registry) ObserveAnomalies(anomalies []anomaly.Anomaly) {
	for _, a := range anomalies {
		r.AnomaliesTotal.WithLabelValues(a.Type.String()).Inc()
	}
}

// SetUAVsTracked reports the session manager's current UAV count.
func (r *Registry) SetUAVsTracked(n int) {
	r.UAVsTrackedGauge.Set(float64(n))
}

// ObserveUAVsExpired increments UAVsExpiredTotal by n, the number of UAVs a
// Cleanup pass just evicted.
func (r *Registry) ObserveUAVsExpired(n int) {
	r.UAVsExpiredTotal.Add(float64(n))
}

// NewDecodeTimer starts a timer that records into DecodeDuration when the
// returned func is called. Callers wrap a single Parse call:
//
//	stop := reg.NewDecodeTimer()
//	defer stop()
func (r *Registry) NewDecodeTimer() func() {
	timer := prometheus.NewTimer(r.DecodeDuration)
	return func() { timer.ObserveDuration() }
}
