package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegisterBuildInfo публикует sales_build_info со значением 1 и метками сборки.
func RegisterBuildInfo(registerer prometheus.Registerer, labels map[string]string) prometheus.Gauge {
	gauge := registerGauge(registerer, prometheus.GaugeOpts{
		Name:        "sales_build_info",
		Help:        "Build information of the running sales-service.",
		ConstLabels: labels,
	})
	gauge.Set(1)
	return gauge
}
