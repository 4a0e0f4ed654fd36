// Package metrics exposes the daemon's Prometheus registry. Gauges for an
// interface are removed, not zeroed, while the daemon is not monitoring it,
// so scrapers can tell "standby" apart from "measured zero".
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	registry *Registry
)

// Registry holds all failover daemon metrics.
type Registry struct {
	// Probe results, labelled by uplink interface
	UnreachableTargets *prometheus.GaugeVec
	InterfaceUp        *prometheus.GaugeVec

	// Route state
	UsingSecondary prometheus.Gauge
	Failovers      prometheus.Counter
	Failbacks      prometheus.Counter
	RouteErrors    *prometheus.CounterVec

	// Supporting operations
	TunnelRestarts *prometheus.CounterVec
	Cycles         *prometheus.CounterVec
}

// Get returns the global metrics registry, creating it if necessary.
func Get() *Registry {
	once.Do(func() {
		registry = newRegistry()
	})
	return registry
}

func newRegistry() *Registry {
	r := &Registry{}

	r.UnreachableTargets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uplinkd_unreachable_targets",
		Help: "Unreachable probe targets in the last completed cycle",
	}, []string{"interface"})

	r.InterfaceUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "uplinkd_interface_up",
		Help: "1 when the uplink passed the last reachability check",
	}, []string{"interface"})

	r.UsingSecondary = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uplinkd_using_secondary",
		Help: "1 while the managed default route points at the secondary uplink",
	})

	r.Failovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplinkd_failover_total",
		Help: "Switches from the primary to the secondary uplink",
	})

	r.Failbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uplinkd_failback_total",
		Help: "Switches back from the secondary to the primary uplink",
	})

	r.RouteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplinkd_route_errors_total",
		Help: "Failed route table mutations",
	}, []string{"op"})

	r.TunnelRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplinkd_tunnel_restarts_total",
		Help: "Tunnel service restart attempts after failback",
	}, []string{"result"})

	r.Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uplinkd_cycles_total",
		Help: "Completed monitoring cycles by resulting state",
	}, []string{"state"})

	return r
}

// SetProbeResult publishes one cycle's probe outcome for an interface.
func (r *Registry) SetProbeResult(iface string, unreachable, targets int) {
	r.UnreachableTargets.WithLabelValues(iface).Set(float64(unreachable))
	up := 0.0
	if unreachable < targets {
		up = 1.0
	}
	r.InterfaceUp.WithLabelValues(iface).Set(up)
}

// ClearProbeResults removes an interface's probe gauges entirely. Used when
// monitoring is suspended so the series disappears instead of going stale.
func (r *Registry) ClearProbeResults(iface string) {
	r.UnreachableTargets.DeleteLabelValues(iface)
	r.InterfaceUp.DeleteLabelValues(iface)
}
