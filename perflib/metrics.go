package perflib

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// countersCollector exposes the shared counters to Prometheus by reading the
// same atomics on scrape; nothing is added to the hot path.
type countersCollector struct {
	ct *Counters

	totHandshakes  *prometheus.Desc
	tcpHandshakes  *prometheus.Desc
	tcpConnections *prometheus.Desc
	tlsHandshakes  *prometheus.Desc
	errors         *prometheus.Desc
}

func NewCountersCollector(ct *Counters) prometheus.Collector {
	return &countersCollector{
		ct: ct,
		totHandshakes: prometheus.NewDesc("tls_perf_handshakes_total",
			"Completed TLS handshakes over the run.", nil, nil),
		tcpHandshakes: prometheus.NewDesc("tls_perf_tcp_handshakes_in_flight",
			"TCP handshakes currently in flight.", nil, nil),
		tcpConnections: prometheus.NewDesc("tls_perf_tcp_connections",
			"Currently established TCP connections.", nil, nil),
		tlsHandshakes: prometheus.NewDesc("tls_perf_tls_handshakes_in_flight",
			"TLS handshakes currently in flight.", nil, nil),
		errors: prometheus.NewDesc("tls_perf_errors_total",
			"Transient per-connection failures.", nil, nil),
	}
}

func (c *countersCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totHandshakes
	ch <- c.tcpHandshakes
	ch <- c.tcpConnections
	ch <- c.tlsHandshakes
	ch <- c.errors
}

func (c *countersCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.totHandshakes, prometheus.CounterValue,
		float64(c.ct.TotTLSHandshakes.Load()))
	ch <- prometheus.MustNewConstMetric(c.tcpHandshakes, prometheus.GaugeValue,
		float64(c.ct.TCPHandshakes.Load()))
	ch <- prometheus.MustNewConstMetric(c.tcpConnections, prometheus.GaugeValue,
		float64(c.ct.TCPConnections.Load()))
	ch <- prometheus.MustNewConstMetric(c.tlsHandshakes, prometheus.GaugeValue,
		float64(c.ct.TLSHandshakes.Load()))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue,
		float64(c.ct.ErrorCount.Load()))
}

// ServeMetrics serves the counters on addr until the process exits.
func ServeMetrics(addr string, ct *Counters) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCountersCollector(ct))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}
