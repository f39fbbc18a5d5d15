package parser

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report parser activity. All
// methods are safe on a nil receiver so sessions without metrics pay nothing
// beyond a nil check.
type Metrics struct {
	fragmentsTotal  prometheus.Counter
	bytesTotal      prometheus.Counter
	callsTotal      *prometheus.CounterVec
	decodeFailures  prometheus.Counter
	incompleteTotal prometheus.Counter
	overflowTotal   prometheus.Counter
	sessionsActive  prometheus.Gauge
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Supply a fresh registry when unique metric names are required (for example
// in tests). Registration errors other than duplicate registration panic,
// mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	fragmentsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mfcs",
		Subsystem: "parser",
		Name:      "fragments_total",
		Help:      "Number of fragments fed into parse sessions.",
	})
	bytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mfcs",
		Subsystem: "parser",
		Name:      "bytes_total",
		Help:      "Number of input bytes fed into parse sessions.",
	})
	callsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mfcs",
			Subsystem: "parser",
			Name:      "calls_total",
			Help:      "Number of completed call records by envelope kind.",
		},
		[]string{"kind"},
	)
	decodeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mfcs",
		Subsystem: "parser",
		Name:      "decode_failures_total",
		Help:      "Number of parameter payloads that stayed undecodable after repair.",
	})
	incompleteTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mfcs",
		Subsystem: "parser",
		Name:      "incomplete_envelopes_total",
		Help:      "Number of envelopes still open when a stream ended.",
	})
	overflowTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mfcs",
		Subsystem: "parser",
		Name:      "envelope_overflows_total",
		Help:      "Number of envelopes abandoned for exceeding the size cap.",
	})
	sessionsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mfcs",
		Subsystem: "parser",
		Name:      "sessions_active",
		Help:      "Number of parse sessions currently open.",
	})

	register := func(c prometheus.Collector) prometheus.Collector {
		if err := reg.Register(c); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				// Reuse the existing collector when registered twice.
				return already.ExistingCollector
			}
			panic(err)
		}
		return c
	}

	fragmentsTotal = register(fragmentsTotal).(prometheus.Counter)
	bytesTotal = register(bytesTotal).(prometheus.Counter)
	callsTotal = register(callsTotal).(*prometheus.CounterVec)
	decodeFailures = register(decodeFailures).(prometheus.Counter)
	incompleteTotal = register(incompleteTotal).(prometheus.Counter)
	overflowTotal = register(overflowTotal).(prometheus.Counter)
	sessionsActive = register(sessionsActive).(prometheus.Gauge)

	return &Metrics{
		fragmentsTotal:  fragmentsTotal,
		bytesTotal:      bytesTotal,
		callsTotal:      callsTotal,
		decodeFailures:  decodeFailures,
		incompleteTotal: incompleteTotal,
		overflowTotal:   overflowTotal,
		sessionsActive:  sessionsActive,
	}
}

// ObserveFragment records one fed fragment and its size.
func (m *Metrics) ObserveFragment(size int) {
	if m == nil || m.fragmentsTotal == nil {
		return
	}
	m.fragmentsTotal.Inc()
	m.bytesTotal.Add(float64(size))
}

// IncCall counts a completed record of the given kind.
func (m *Metrics) IncCall(kind string) {
	if m == nil || m.callsTotal == nil {
		return
	}
	m.callsTotal.WithLabelValues(kind).Inc()
}

// IncDecodeFailure counts a payload that could not be decoded.
func (m *Metrics) IncDecodeFailure() {
	if m == nil || m.decodeFailures == nil {
		return
	}
	m.decodeFailures.Inc()
}

// IncIncomplete counts an envelope left open at end of stream.
func (m *Metrics) IncIncomplete() {
	if m == nil || m.incompleteTotal == nil {
		return
	}
	m.incompleteTotal.Inc()
}

// IncOverflow counts an envelope abandoned at the size cap.
func (m *Metrics) IncOverflow() {
	if m == nil || m.overflowTotal == nil {
		return
	}
	m.overflowTotal.Inc()
}

// IncActiveSessions marks a session as open.
func (m *Metrics) IncActiveSessions() {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Inc()
}

// DecActiveSessions marks a session as closed.
func (m *Metrics) DecActiveSessions() {
	if m == nil || m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Dec()
}
