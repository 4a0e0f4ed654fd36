package failover

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/uplinkd/internal/logging"
	"grimm.is/uplinkd/internal/metrics"
	"grimm.is/uplinkd/internal/network"
)

// RouteController owns exactly one route: the failover default route on the
// secondary uplink at the reserved metric. Other actors (DHCP hooks, HA
// scripts) manage default routes at other metrics on the same host, so the
// controller never assumes the table looks the way it left it; Refresh
// re-derives ownership from the live table before every decision.
type RouteController struct {
	nl            network.Netlinker
	cmd           network.CommandExecutor
	log           *logging.Logger
	iface         string
	metric        int
	tunnelService string

	usingSecondary bool
}

// NewRouteController creates a controller for the failover route on the
// secondary interface.
func NewRouteController(nl network.Netlinker, cmd network.CommandExecutor, log *logging.Logger, iface string, metric int, tunnelService string) *RouteController {
	return &RouteController{
		nl:            nl,
		cmd:           cmd,
		log:           log.WithComponent("routes"),
		iface:         iface,
		metric:        metric,
		tunnelService: tunnelService,
	}
}

// UsingSecondary reports whether the failover route was present at the last
// Refresh, as adjusted by switches since then.
func (rc *RouteController) UsingSecondary() bool {
	return rc.usingSecondary
}

// Refresh re-derives the using-secondary flag from the live routing table.
// The flag is true iff a default route exists on the secondary interface at
// the reserved metric.
func (rc *RouteController) Refresh() error {
	link, err := rc.nl.LinkByName(rc.iface)
	if err != nil {
		return fmt.Errorf("failed to look up interface %s: %w", rc.iface, err)
	}

	routes, err := rc.nl.RouteList(link, unix.AF_INET)
	if err != nil {
		return fmt.Errorf("failed to list routes on %s: %w", rc.iface, err)
	}

	rc.usingSecondary = false
	for _, r := range routes {
		if r.Dst == nil && r.Priority == rc.metric {
			rc.usingSecondary = true
			break
		}
	}
	rc.publishState()
	return nil
}

// SwitchToSecondary installs the failover default route via gw. No-op when
// the route is already in place. On failure the local state is left
// unchanged so the install is retried on the next eligible cycle.
func (rc *RouteController) SwitchToSecondary(gw net.IP) {
	if rc.usingSecondary {
		return
	}

	link, err := rc.nl.LinkByName(rc.iface)
	if err != nil {
		rc.log.Warn("Failed to look up secondary interface", "interface", rc.iface, "error", err)
		metrics.Get().RouteErrors.WithLabelValues("add").Inc()
		return
	}

	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Gw:        gw,
		Priority:  rc.metric,
	}
	if err := rc.nl.RouteAdd(route); err != nil {
		// A duplicate-route rejection lands here too; it is retried like
		// any other mutation failure.
		rc.log.Warn("Failed to install failover route", "gateway", gw.String(), "metric", rc.metric, "error", err)
		metrics.Get().RouteErrors.WithLabelValues("add").Inc()
		return
	}

	rc.usingSecondary = true
	metrics.Get().Failovers.Inc()
	rc.publishState()
	rc.log.Info("Failed over to secondary uplink", "interface", rc.iface, "gateway", gw.String(), "metric", rc.metric)
}

// SwitchToPrimary removes the failover route. No-op when the route is not
// in place. Whatever the delete outcome, the dependent tunnel service is
// restarted best-effort so it rebinds through the primary uplink.
func (rc *RouteController) SwitchToPrimary() {
	if !rc.usingSecondary {
		return
	}

	if err := rc.deleteFailoverRoute(); err != nil {
		rc.log.Warn("Failed to remove failover route", "interface", rc.iface, "metric", rc.metric, "error", err)
		metrics.Get().RouteErrors.WithLabelValues("del").Inc()
	} else {
		rc.usingSecondary = false
		metrics.Get().Failbacks.Inc()
		rc.publishState()
		rc.log.Info("Failed back to primary uplink", "interface", rc.iface, "metric", rc.metric)
	}

	rc.restartTunnel()
}

func (rc *RouteController) deleteFailoverRoute() error {
	link, err := rc.nl.LinkByName(rc.iface)
	if err != nil {
		return fmt.Errorf("failed to look up interface %s: %w", rc.iface, err)
	}
	return rc.nl.RouteDel(&netlink.Route{
		LinkIndex: link.Attrs().Index,
		Priority:  rc.metric,
	})
}

// restartTunnel restarts the dependent tunnel service by name, trying
// systemd first and SysV init as a fallback. Failures are logged and
// swallowed; the route change stands either way.
func (rc *RouteController) restartTunnel() {
	if rc.tunnelService == "" {
		return
	}

	if out, err := rc.cmd.RunCommand("systemctl", "restart", rc.tunnelService); err == nil {
		metrics.Get().TunnelRestarts.WithLabelValues("ok").Inc()
		rc.log.Info("Restarted tunnel service", "service", rc.tunnelService)
		return
	} else {
		rc.log.Debug("systemctl restart failed, trying init script", "service", rc.tunnelService, "output", out, "error", err)
	}

	if out, err := rc.cmd.RunCommand("/etc/init.d/"+rc.tunnelService, "restart"); err != nil {
		metrics.Get().TunnelRestarts.WithLabelValues("error").Inc()
		rc.log.Error("Failed to restart tunnel service", "service", rc.tunnelService, "output", out, "error", err)
		return
	}
	metrics.Get().TunnelRestarts.WithLabelValues("ok").Inc()
	rc.log.Info("Restarted tunnel service", "service", rc.tunnelService)
}

func (rc *RouteController) publishState() {
	v := 0.0
	if rc.usingSecondary {
		v = 1.0
	}
	metrics.Get().UsingSecondary.Set(v)
}
