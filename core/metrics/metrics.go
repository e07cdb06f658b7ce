// Package metrics defines the Prometheus collectors exported by the
// dataplane: packet and policy counters plus table/mailbox occupancy
// gauges, grounded on the counters and gauges original_source/gk and
// original_source/lls log at NOTICE level on a periodic basis (packets
// granted/dropped, cache hit/miss, table occupancy) but never expose for
// scraping — Prometheus fills that observability gap idiomatically.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registry bundles every counter/gauge the dataplane updates. A Registry is
// created per process and passed down to gk.Instance/lls.Worker.
type Registry struct {
	PacketsGranted   prometheus.Counter
	PacketsDropped   prometheus.Counter
	PacketsRequested prometheus.Counter
	TableFull        prometheus.Counter
	MailboxFull      prometheus.Counter
	CacheHit         prometheus.Counter
	CacheMiss        prometheus.Counter
	TableOccupancy   prometheus.Gauge
	CacheOccupancy   prometheus.Gauge
}

// NewRegistry creates a Registry and registers every metric with reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	m := &Registry{
		PacketsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Subsystem: "gk",
			Name:      "packets_granted_total",
			Help:      "Packets forwarded toward a grantor from flows that were not in the request state when the packet arrived.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Subsystem: "gk",
			Name:      "packets_dropped_total",
			Help:      "Packets dropped by the flow state machine (declined or over budget); table-full drops are counted by flow_table_full_total.",
		}),
		PacketsRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Subsystem: "gk",
			Name:      "packets_requested_total",
			Help:      "Packets encapsulated as capability requests.",
		}),
		TableFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Subsystem: "gk",
			Name:      "flow_table_full_total",
			Help:      "Flow entry insertions rejected because the shard's flow table was full.",
		}),
		MailboxFull: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Name:      "mailbox_full_total",
			Help:      "Commands dropped because a worker's mailbox was full.",
		}),
		CacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Subsystem: "lls",
			Name:      "cache_hit_total",
			Help:      "Neighbor cache lookups that found a resolved entry.",
		}),
		CacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gatekeeper",
			Subsystem: "lls",
			Name:      "cache_miss_total",
			Help:      "Neighbor cache holds that found no resolved entry; a resolution request is sent only if none is outstanding.",
		}),
		TableOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatekeeper",
			Subsystem: "gk",
			Name:      "flow_table_occupancy",
			Help:      "Current number of occupied flow table slots, summed across shards.",
		}),
		CacheOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatekeeper",
			Subsystem: "lls",
			Name:      "cache_occupancy",
			Help:      "Current number of occupied neighbor cache slots.",
		}),
	}

	reg.MustRegister(
		m.PacketsGranted, m.PacketsDropped, m.PacketsRequested,
		m.TableFull, m.MailboxFull, m.CacheHit, m.CacheMiss,
		m.TableOccupancy, m.CacheOccupancy,
	)
	return m
}

// Value extracts the current numeric reading from a Counter or Gauge,
// for callers (core/ggu's stats endpoint) that need a snapshot outside of
// a Prometheus scrape.
func Value(c prometheus.Collector) float64 {
	m, ok := c.(prometheus.Metric)
	if !ok {
		return 0
	}
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return 0
	}
	if out.Counter != nil {
		return out.Counter.GetValue()
	}
	if out.Gauge != nil {
		return out.Gauge.GetValue()
	}
	return 0
}
