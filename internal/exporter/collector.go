package exporter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/config"
	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/hashpipe-gateway/internal/status"
)

// DefaultScrapeTimeout bounds how long a scrape waits for each instance's lock.
const DefaultScrapeTimeout = 250 * time.Millisecond

// CollectorOptions configures a Collector.
type CollectorOptions struct {
	Registry *status.Registry
	Domain   string
	Gateway  string
	Name     string
	Help     string
	Fields   []config.MetricField

	// LockTimeout is the per-instance lock budget. Zero means DefaultScrapeTimeout.
	LockTimeout time.Duration
	Logger      *logging.Logger
}

// Collector projects status buffer fields onto Prometheus gauges. It is an
// unchecked collector because string fields add a value label the numeric
// ones lack.
type Collector struct {
	registry *status.Registry
	domain   string
	gateway  string
	fields   []config.MetricField
	timeout  time.Duration
	logger   *logging.Logger

	numericDesc  *prometheus.Desc
	stringDesc   *prometheus.Desc
	durationDesc *prometheus.Desc
}

// NewCollector builds a collector. Repeated field names keep their first
// entry.
func NewCollector(opts CollectorOptions) *Collector {
	name := opts.Name
	if name == "" {
		name = config.DefaultMetricName
	}
	help := opts.Help
	if help == "" {
		help = config.DefaultMetricHelp
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultScrapeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Collector{
		registry: opts.Registry,
		domain:   opts.Domain,
		gateway:  opts.Gateway,
		fields:   dedupeFields(opts.Fields),
		timeout:  timeout,
		logger:   logger,
		numericDesc: prometheus.NewDesc(name, help,
			[]string{"domain", "hpinstance", "name"}, nil),
		stringDesc: prometheus.NewDesc(name, help,
			[]string{"domain", "hpinstance", "name", "value"}, nil),
		durationDesc: prometheus.NewDesc(name+"_scrape_duration_seconds",
			"Number of seconds to scrape the "+name+" exporter",
			[]string{"domain", "gateway"}, nil),
	}
}

// Describe sends nothing, which registers c as unchecked.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect snapshots each instance and emits one gauge per present field.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	start := time.Now()

	if len(c.fields) > 0 && c.registry != nil {
		for _, e := range c.registry.Entities() {
			c.collectEntity(ch, e)
		}
	}

	ch <- prometheus.MustNewConstMetric(c.durationDesc, prometheus.GaugeValue,
		time.Since(start).Seconds(), c.domain, c.gateway)
}

func (c *Collector) collectEntity(ch chan<- prometheus.Metric, e *status.Entity) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	snap, err := e.Snapshot(ctx)
	if err != nil {
		if errors.Is(err, status.ErrLockTimeout) {
			c.logger.Debug("instance skipped in scrape", "instance", int(e.ID()), "error", err)
		} else {
			c.logger.Warn("instance snapshot failed", "instance", int(e.ID()), "error", err)
		}
		return
	}

	hpinstance := c.gateway + "/" + e.ID().String()
	for _, f := range c.fields {
		v, ok := snap.Get(f.Name)
		if !ok {
			continue
		}

		if f.String {
			raw := strings.ToValidUTF8(strings.TrimSpace(v.String()), "?")
			ch <- c.constMetric(c.stringDesc, 1, hpinstance, f.Name, raw)
			continue
		}

		num, ok := v.Float64()
		if !ok {
			c.logger.Debug("non-numeric field skipped", "instance", int(e.ID()), "field", f.Name)
			continue
		}
		ch <- c.constMetric(c.numericDesc, num, hpinstance, f.Name)
	}
}

func (c *Collector) constMetric(desc *prometheus.Desc, v float64, labels ...string) prometheus.Metric {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, append([]string{c.domain}, labels...)...)
	if err != nil {
		return prometheus.NewInvalidMetric(desc, err)
	}
	return m
}

// dedupeFields drops repeated names, keeping the first occurrence. Keys
// are normalized the way the status buffer stores them.
func dedupeFields(fields []config.MetricField) []config.MetricField {
	seen := make(map[string]bool, len(fields))
	out := make([]config.MetricField, 0, len(fields))
	for _, f := range fields {
		f.Name = status.NormalizeKey(f.Name)
		if f.Name == "" || seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		out = append(out, f)
	}
	return out
}
