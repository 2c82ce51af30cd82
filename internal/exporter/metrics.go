package exporter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/hashpipe-gateway/internal/gateway"
)

// GatewayMetrics counts publisher and router activity. It implements
// gateway.Metrics.
type GatewayMetrics struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	entities      prometheus.Gauge
	failures      prometheus.Counter
	commands      *prometheus.CounterVec
	lockTimeouts  prometheus.Counter
}

var _ gateway.Metrics = (*GatewayMetrics)(nil)

// NewGatewayMetrics creates the gateway counters and registers them on reg.
func NewGatewayMetrics(reg prometheus.Registerer) (*GatewayMetrics, error) {
	m := &GatewayMetrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hpgateway_publish_cycles_total",
			Help: "Publish cycles written to Redis.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hpgateway_publish_duration_seconds",
			Help:    "Time to snapshot all instances and write them to Redis.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		entities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hpgateway_published_instances",
			Help: "Instances written in the most recent publish cycle.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hpgateway_publish_failures_total",
			Help: "Publish cycles whose Redis round trip failed.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hpgateway_commands_total",
			Help: "Command messages handled, by channel kind.",
		}, []string{"kind"}),
		lockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hpgateway_lock_timeouts_total",
			Help: "Status buffer lock acquisitions that timed out.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.cycles, m.cycleDuration, m.entities, m.failures, m.commands, m.lockTimeouts,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// PublishCycle records one completed cycle.
func (m *GatewayMetrics) PublishCycle(d time.Duration, entities int) {
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.entities.Set(float64(entities))
}

func (m *GatewayMetrics) PublishFailed() { m.failures.Inc() }

func (m *GatewayMetrics) CommandHandled(kind gateway.Kind) {
	m.commands.WithLabelValues(kind.String()).Inc()
}

func (m *GatewayMetrics) LockTimeout() { m.lockTimeouts.Inc() }
