package session

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Total successful model loads",
		},
	)

	generationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "generations_total",
			Help:      "Total generate calls served",
		},
	)

	tokensGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "tokens_generated_total",
			Help:      "Total tokens produced across all generations",
		},
	)

	generateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "generate_duration_seconds",
			Help:      "Duration of generate calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	sessionsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferd",
			Subsystem: "session",
			Name:      "live_sessions",
			Help:      "Sessions currently held in the table",
		},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, generationsTotal, tokensGeneratedTotal, generateDuration, sessionsLive)
}
