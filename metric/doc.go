// Package metric exports index metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	collector, err := metric.NewPrometheusCollector(reg, "sc4")
//	idx, err := dbpfindex.New(dbpfindex.WithMetricsCollector(collector))
package metric
