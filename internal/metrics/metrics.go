// Package metrics exposes pipeline counters in the Prometheus text format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/raido/internal/pipeline"
)

const namespace = "raido"

// StatsFunc returns a consistent view of the pipeline counters.
type StatsFunc func() pipeline.Stats

type metric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(pipeline.Stats) float64
}

// Collector reads pipeline stats once per scrape.
type Collector struct {
	stats   StatsFunc
	metrics []metric
	state   *prometheus.Desc
}

func counter(subsystem, name, help string, value func(pipeline.Stats) float64) metric {
	return metric{
		desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, nil, nil),
		kind:  prometheus.CounterValue,
		value: value,
	}
}

func gauge(subsystem, name, help string, value func(pipeline.Stats) float64) metric {
	m := counter(subsystem, name, help, value)
	m.kind = prometheus.GaugeValue
	return m
}

// NewCollector builds a collector over stats.
func NewCollector(stats StatsFunc) *Collector {
	return &Collector{
		stats: stats,
		metrics: []metric{
			gauge("metadata_cache", "entries", "Positive entries in the metadata cache.",
				func(s pipeline.Stats) float64 { return float64(s.Cache.Entries) }),
			gauge("metadata_cache", "negatives", "Model files known to be missing or unreadable.",
				func(s pipeline.Stats) float64 { return float64(s.Cache.Negatives) }),
			gauge("metadata_cache", "capacity", "Positive cache capacity.",
				func(s pipeline.Stats) float64 { return float64(s.Cache.Capacity) }),
			counter("metadata_cache", "hits_total", "Cache lookups that returned a record.",
				func(s pipeline.Stats) float64 { return float64(s.Cache.Hits) }),
			counter("metadata_cache", "misses_total", "Cache lookups that returned nothing.",
				func(s pipeline.Stats) float64 { return float64(s.Cache.Misses) }),
			counter("metadata_cache", "evictions_total", "Entries dropped to make room.",
				func(s pipeline.Stats) float64 { return float64(s.Cache.Evictions) }),

			counter("metadata_loader", "submitted_total", "Load requests accepted.",
				func(s pipeline.Stats) float64 { return float64(s.Loader.Submitted) }),
			counter("metadata_loader", "deduplicated_total", "Load requests for keys already loading or cached.",
				func(s pipeline.Stats) float64 { return float64(s.Loader.Deduplicated) }),
			counter("metadata_loader", "rejected_total", "Load requests dropped on a full queue.",
				func(s pipeline.Stats) float64 { return float64(s.Loader.Rejected) }),
			counter("metadata_loader", "loaded_total", "Model files parsed and installed.",
				func(s pipeline.Stats) float64 { return float64(s.Loader.Loaded) }),
			counter("metadata_loader", "failed_total", "Model files that could not be parsed.",
				func(s pipeline.Stats) float64 { return float64(s.Loader.Failed) }),
			counter("metadata_loader", "discarded_total", "Loads dropped because the file was invalidated while parsing.",
				func(s pipeline.Stats) float64 { return float64(s.Loader.Discarded) }),
			gauge("metadata_loader", "queued", "Requests waiting for the worker.",
				func(s pipeline.Stats) float64 { return float64(s.Loader.Queued) }),

			counter("snapshot", "updates_total", "Snapshots handed to the store.",
				func(s pipeline.Stats) float64 { return float64(s.Store.Updates) }),
			counter("snapshot", "invalid_total", "Snapshots replaced by the empty snapshot.",
				func(s pipeline.Stats) float64 { return float64(s.Store.Invalid) }),
			counter("snapshot", "overwritten_total", "Snapshots replaced before the publisher took them.",
				func(s pipeline.Stats) float64 { return float64(s.Store.Overwritten) }),

			counter("publisher", "frames_total", "Frames written to the transport.",
				func(s pipeline.Stats) float64 { return float64(s.Publisher.Published) }),
			counter("publisher", "oversize_total", "Frames skipped for exceeding the transport capacity.",
				func(s pipeline.Stats) float64 { return float64(s.Publisher.Oversize) }),
			counter("publisher", "write_errors_total", "Transport write failures.",
				func(s pipeline.Stats) float64 { return float64(s.Publisher.WriteErrors) }),
			counter("publisher", "bytes_total", "Bytes written to the transport.",
				func(s pipeline.Stats) float64 { return float64(s.Publisher.Bytes) }),
			gauge("publisher", "last_frame_bytes", "Size of the most recent frame.",
				func(s pipeline.Stats) float64 { return float64(s.Publisher.LastFrame) }),

			counter("sampler", "samples_total", "Sampling cycles run.",
				func(s pipeline.Stats) float64 { return float64(s.Sampler.Samples) }),
			counter("sampler", "drops_total", "Snapshots dropped because the store was busy.",
				func(s pipeline.Stats) float64 { return float64(s.Sampler.Drops) }),
		},
		state: prometheus.NewDesc(prometheus.BuildFQName(namespace, "publisher", "state"),
			"Current publisher state (1 for the active state).", []string{"state"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
	ch <- c.state
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(s))
	}
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, 1, s.Publisher.State)
}

// NewRegistry returns a registry with the pipeline collector and the Go
// runtime collectors.
func NewRegistry(stats StatsFunc) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(stats),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg at /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
