package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector records index operations as Prometheus metrics. It
// satisfies dbpfindex.MetricsCollector.
type PrometheusCollector struct {
	opLatency   *prometheus.HistogramVec
	reads       *prometheus.CounterVec
	evictions   prometheus.Counter
	evictBytes  prometheus.Counter
	buildFiles  *prometheus.CounterVec
	entries     prometheus.Gauge
	families    prometheus.Gauge
	familyItems prometheus.Gauge
	snapshots   *prometheus.CounterVec
	snapBytes   *prometheus.CounterVec
}

// NewPrometheusCollector creates the metrics under namespace and registers
// them with reg. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "dbpfindex"
	}

	p := &PrometheusCollector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of index operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "status"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entry_reads_total",
			Help:      "Entry reads by cache result",
		}, []string{"cache"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Decoded payloads evicted from the cache",
		}),
		evictBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evicted_bytes_total",
			Help:      "Bytes released by cache evictions",
		}),
		buildFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_files_total",
			Help:      "Source files processed by builds",
		}, []string{"result"}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Entries registered by the last build",
		}),
		families: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "families",
			Help:      "Family ids found by the last family pass",
		}),
		familyItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "family_members",
			Help:      "Family members found by the last family pass",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshot saves and loads",
		}, []string{"op", "status"}),
		snapBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes_total",
			Help:      "Snapshot bytes written or read",
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{
		p.opLatency, p.reads, p.evictions, p.evictBytes, p.buildFiles,
		p.entries, p.families, p.familyItems, p.snapshots, p.snapBytes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordBuild implements dbpfindex.MetricsCollector.
func (p *PrometheusCollector) RecordBuild(files, entries, failed int, duration time.Duration, err error) {
	p.opLatency.WithLabelValues("build", status(err)).Observe(duration.Seconds())
	p.buildFiles.WithLabelValues("ok").Add(float64(files - failed))
	p.buildFiles.WithLabelValues("failed").Add(float64(failed))
	p.entries.Set(float64(entries))
}

// RecordRead implements dbpfindex.MetricsCollector.
func (p *PrometheusCollector) RecordRead(hit bool, duration time.Duration, err error) {
	p.reads.WithLabelValues(strconv.FormatBool(hit)).Inc()
	if !hit {
		p.opLatency.WithLabelValues("decode", status(err)).Observe(duration.Seconds())
	}
}

// RecordEviction implements dbpfindex.MetricsCollector.
func (p *PrometheusCollector) RecordEviction(bytes int64) {
	p.evictions.Inc()
	p.evictBytes.Add(float64(bytes))
}

// RecordFamilies implements dbpfindex.MetricsCollector.
func (p *PrometheusCollector) RecordFamilies(families, members int, duration time.Duration, err error) {
	p.opLatency.WithLabelValues("families", status(err)).Observe(duration.Seconds())
	p.families.Set(float64(families))
	p.familyItems.Set(float64(members))
}

// RecordSnapshot implements dbpfindex.MetricsCollector.
func (p *PrometheusCollector) RecordSnapshot(op string, bytes int, duration time.Duration, err error) {
	p.opLatency.WithLabelValues("snapshot_"+op, status(err)).Observe(duration.Seconds())
	p.snapshots.WithLabelValues(op, status(err)).Inc()
	if err == nil {
		p.snapBytes.WithLabelValues(op).Add(float64(bytes))
	}
}
