package failover

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"grimm.is/uplinkd/internal/clock"
	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/logging"
	"grimm.is/uplinkd/internal/metrics"
	"grimm.is/uplinkd/internal/network"
	"grimm.is/uplinkd/internal/probe"
)

// probeOutcome carries one uplink's probe result back to the control loop.
type probeOutcome struct {
	role        Role
	unreachable int
}

// Controller drives the monitoring loop. A single goroutine owns the
// tracker and route state; the only concurrency is the per-cycle fan-out of
// exactly two probe goroutines, joined on a channel.
type Controller struct {
	cfg     *config.Config
	nl      network.Netlinker
	rc      *RouteController
	tracker *Tracker
	prober  *probe.Prober
	log     *logging.Logger

	primaryIface   string
	secondaryIface string
}

// NewController wires a controller from validated configuration.
func NewController(cfg *config.Config, nl network.Netlinker, cmd network.CommandExecutor, log *logging.Logger) *Controller {
	secondary := cfg.Interface(config.RoleSecondary)
	return &Controller{
		cfg:            cfg,
		nl:             nl,
		rc:             NewRouteController(nl, cmd, log, secondary, cfg.Failover.RouteMetric, cfg.Failover.TunnelService),
		tracker:        NewTracker(cfg.Failover.Threshold),
		prober:         probe.New(cfg.ProbeTargets(), cfg.Probe.Attempts, cfg.ProbeTimeout()),
		log:            log.WithComponent("failover"),
		primaryIface:   cfg.Interface(config.RolePrimary),
		secondaryIface: secondary,
	}
}

// Run executes monitoring cycles until ctx is cancelled. Cancellation
// abandons any in-flight cycle without applying its decision; the next
// process start re-derives all state from the live routing table.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info("Monitoring uplinks",
		"primary", c.primaryIface,
		"secondary", c.secondaryIface,
		"targets", len(c.prober.Targets),
		"threshold", c.tracker.Threshold())

	for {
		started := clock.Now()
		interval, err := c.runCycle(ctx)
		if ctx.Err() != nil {
			c.log.Info("Shutting down")
			return ctx.Err()
		}
		if err != nil {
			c.log.Warn("Cycle failed", "error", err, "duration", clock.Since(started))
		}

		select {
		case <-ctx.Done():
			c.log.Info("Shutting down")
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// runCycle performs one monitoring cycle and returns how long to sleep
// before the next one.
func (c *Controller) runCycle(ctx context.Context) (time.Duration, error) {
	m := metrics.Get()

	primaryAddr := c.firstIPv4(c.primaryIface)
	secondaryAddr := c.firstIPv4(c.secondaryIface)

	if primaryAddr == nil && secondaryAddr == nil {
		// No link at all. Remove the probe gauges so consumers see
		// "standing by" rather than a stale measurement.
		m.ClearProbeResults(c.primaryIface)
		m.ClearProbeResults(c.secondaryIface)
		m.Cycles.WithLabelValues("no_link").Inc()
		c.log.Warn("Neither uplink carries an address, standing by")
		return c.cfg.IdleInterval(), nil
	}

	if err := c.rc.Refresh(); err != nil {
		m.Cycles.WithLabelValues("error").Inc()
		return c.cfg.CheckInterval(), err
	}

	gw, err := c.secondaryGateway()
	if err != nil {
		// Without a usable secondary gateway, failover is meaningless
		// and an installed failover route is a trap. Force primary every
		// cycle until the gateway comes back, counters notwithstanding.
		c.log.Error("Secondary gateway unusable, forcing primary route", "error", err)
		c.rc.SwitchToPrimary()
		m.Cycles.WithLabelValues("emergency").Inc()
		return c.cfg.IdleInterval(), nil
	}

	results := make(chan probeOutcome, 2)
	go c.probeUplink(ctx, Primary, primaryAddr, results)
	go c.probeUplink(ctx, Secondary, secondaryAddr, results)

	unreachable := map[Role]int{}
	for i := 0; i < 2; i++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case r := <-results:
			unreachable[r.role] = r.unreachable
		}
	}
	if ctx.Err() != nil {
		// Interrupted cycles never decide.
		return 0, ctx.Err()
	}

	c.tracker.Observe(Primary, unreachable[Primary])
	c.tracker.Observe(Secondary, unreachable[Secondary])
	m.SetProbeResult(c.primaryIface, unreachable[Primary], len(c.prober.Targets))
	m.SetProbeResult(c.secondaryIface, unreachable[Secondary], len(c.prober.Targets))
	c.log.Debug("Cycle complete",
		"primary_unreachable", unreachable[Primary],
		"secondary_unreachable", unreachable[Secondary],
		"primary_counter", c.tracker.Counter(Primary),
		"secondary_counter", c.tracker.Counter(Secondary),
		"using_secondary", c.rc.UsingSecondary())

	switch {
	case !c.rc.UsingSecondary() && c.tracker.Down(Primary) && c.tracker.Down(Secondary):
		c.log.Warn("Both uplinks down, keeping primary route")
	case !c.rc.UsingSecondary() && c.tracker.Down(Primary):
		c.log.Warn("Primary uplink down, failing over", "gateway", gw.String())
		c.rc.SwitchToSecondary(gw)
	case c.rc.UsingSecondary() && c.tracker.Counter(Primary) == 0:
		c.log.Info("Primary uplink healthy, failing back")
		c.rc.SwitchToPrimary()
	}

	state := "primary"
	if c.rc.UsingSecondary() {
		state = "secondary"
	}
	m.Cycles.WithLabelValues(state).Inc()
	return c.cfg.CheckInterval(), nil
}

// probeUplink probes all targets through one uplink. An uplink without an
// address cannot reach anything, so it reports every target unreachable
// without sending probes.
func (c *Controller) probeUplink(ctx context.Context, role Role, src net.IP, out chan<- probeOutcome) {
	if src == nil {
		out <- probeOutcome{role: role, unreachable: len(c.prober.Targets)}
		return
	}
	out <- probeOutcome{role: role, unreachable: c.prober.Unreachable(ctx, src)}
}

// firstIPv4 returns the interface's first IPv4 address, or nil when the
// interface is missing or unaddressed.
func (c *Controller) firstIPv4(iface string) net.IP {
	link, err := c.nl.LinkByName(iface)
	if err != nil {
		return nil
	}
	addrs, err := c.nl.AddrList(link, unix.AF_INET)
	if err != nil || len(addrs) == 0 {
		return nil
	}
	return addrs[0].IP
}

// secondaryGateway discovers the secondary uplink's own default gateway,
// fresh each cycle. Routes at the reserved failover metric are ours and are
// skipped; of the remaining default routes the lowest metric wins. The
// gateway must render as a well-formed IPv4 dotted-quad.
func (c *Controller) secondaryGateway() (net.IP, error) {
	link, err := c.nl.LinkByName(c.secondaryIface)
	if err != nil {
		return nil, fmt.Errorf("failed to look up interface %s: %w", c.secondaryIface, err)
	}

	routes, err := c.nl.RouteList(link, unix.AF_INET)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes on %s: %w", c.secondaryIface, err)
	}

	best := -1
	for i, r := range routes {
		if r.Dst != nil || r.Priority == c.cfg.Failover.RouteMetric {
			continue
		}
		if best < 0 || r.Priority < routes[best].Priority {
			best = i
		}
	}
	if best < 0 {
		return nil, fmt.Errorf("no default route on %s", c.secondaryIface)
	}

	gw := routes[best].Gw
	if gw == nil {
		return nil, fmt.Errorf("default route on %s has no gateway", c.secondaryIface)
	}
	parsed := net.ParseIP(gw.String())
	if parsed == nil || parsed.To4() == nil {
		return nil, fmt.Errorf("gateway %q on %s is not an IPv4 address", gw.String(), c.secondaryIface)
	}
	return parsed.To4(), nil
}
