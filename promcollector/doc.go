// Package promcollector exports tessera engine metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	eng := tessera.New(tessera.WithMetricsCollector(promcollector.New(reg)))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package promcollector
