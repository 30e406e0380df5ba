package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexusfab/fabric/internal/registry"
)

// fabricCollector exports each service's breaker state and pool occupancy as
// Prometheus gauges and its call totals as counters, read live off the Fabric
// rather than cached.
type fabricCollector struct {
	fabric        *registry.Fabric
	breakerState  *prometheus.Desc
	callsTotal    *prometheus.Desc
	poolOccupancy *prometheus.Desc
}

func newFabricCollector(fabric *registry.Fabric) *fabricCollector {
	return &fabricCollector{
		fabric: fabric,
		breakerState: prometheus.NewDesc(
			"nexusfab_breaker_state", "Current breaker state (0=closed,1=open,2=half-open)",
			[]string{"service"}, nil),
		callsTotal: prometheus.NewDesc(
			"nexusfab_calls_total", "Total calls by outcome",
			[]string{"service", "outcome"}, nil),
		poolOccupancy: prometheus.NewDesc(
			"nexusfab_pool_connections", "Pool connections by state",
			[]string{"service", "state"}, nil),
	}
}

func (c *fabricCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.breakerState
	ch <- c.callsTotal
	ch <- c.poolOccupancy
}

func (c *fabricCollector) Collect(ch chan<- prometheus.Metric) {
	for name, svc := range c.fabric.Services {
		ch <- prometheus.MustNewConstMetric(c.breakerState, prometheus.GaugeValue, float64(svc.Breaker.State()), name)

		success, failure, rejected := svc.Breaker.Totals()
		ch <- prometheus.MustNewConstMetric(c.callsTotal, prometheus.CounterValue, float64(success), name, "success")
		ch <- prometheus.MustNewConstMetric(c.callsTotal, prometheus.CounterValue, float64(failure), name, "failure")
		ch <- prometheus.MustNewConstMetric(c.callsTotal, prometheus.CounterValue, float64(rejected), name, "rejected")

		if svc.Pool != nil {
			live, idle := svc.Pool.Stats()
			ch <- prometheus.MustNewConstMetric(c.poolOccupancy, prometheus.GaugeValue, float64(live), name, "live")
			ch <- prometheus.MustNewConstMetric(c.poolOccupancy, prometheus.GaugeValue, float64(idle), name, "idle")
		}
	}
}

// RegisterMetrics wires a /metrics Prometheus endpoint backed directly by
// the fabric's live state.
func (s *Server) RegisterMetrics() {
	registerer := prometheus.NewRegistry()
	registerer.MustRegister(newFabricCollector(s.fabric))
	s.mux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
}
