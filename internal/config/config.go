// Package config defines and loads the daemon's HCL configuration.
package config

import (
	"fmt"
	"net"
	"time"

	"grimm.is/uplinkd/internal/logging"
)

// Uplink roles. Exactly one uplink block per role must be configured.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// Config is the root configuration.
type Config struct {
	LogLevel      string    `hcl:"log_level,optional"`
	LogJSON       bool      `hcl:"log_json,optional"`
	MetricsListen string    `hcl:"metrics_listen,optional"`
	Uplinks       []Uplink  `hcl:"uplink,block"`
	Probe         *Probe    `hcl:"probe,block"`
	Failover      *Failover `hcl:"failover,block"`
}

// Uplink binds a role (primary or secondary) to a network interface.
type Uplink struct {
	Role      string `hcl:"role,label"`
	Interface string `hcl:"interface"`
}

// Probe configures the reachability prober. Both uplinks share the same
// target set; each target gets up to Attempts echo attempts per cycle.
type Probe struct {
	Targets        []string `hcl:"targets,optional"`
	Attempts       int      `hcl:"attempts,optional"`
	TimeoutSeconds int      `hcl:"timeout,optional"`
}

// Failover configures the hysteresis and route-switching behavior.
// RouteMetric is the metric reserved for the failover default route; it must
// not collide with metrics used by other route-management actors (DHCP
// hooks, HA scripts) on the same host.
type Failover struct {
	Threshold            int    `hcl:"threshold,optional"`
	CheckIntervalSeconds int    `hcl:"check_interval,optional"`
	IdleIntervalSeconds  int    `hcl:"idle_interval,optional"`
	RouteMetric          int    `hcl:"route_metric,optional"`
	TunnelService        string `hcl:"tunnel_service,optional"`
}

// Defaults matching the reference deployment.
const (
	DefaultAttempts      = 3
	DefaultTimeout       = 2
	DefaultThreshold     = 3
	DefaultCheckInterval = 5
	DefaultIdleInterval  = 60
	DefaultRouteMetric   = 200
)

// DefaultTargets are well-known anycast resolvers used when no probe
// targets are configured.
var DefaultTargets = []string{"1.1.1.1", "8.8.8.8", "9.9.9.9"}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Probe == nil {
		c.Probe = &Probe{}
	}
	if len(c.Probe.Targets) == 0 {
		c.Probe.Targets = append([]string(nil), DefaultTargets...)
	}
	if c.Probe.Attempts == 0 {
		c.Probe.Attempts = DefaultAttempts
	}
	if c.Probe.TimeoutSeconds == 0 {
		c.Probe.TimeoutSeconds = DefaultTimeout
	}
	if c.Failover == nil {
		c.Failover = &Failover{}
	}
	if c.Failover.Threshold == 0 {
		c.Failover.Threshold = DefaultThreshold
	}
	if c.Failover.CheckIntervalSeconds == 0 {
		c.Failover.CheckIntervalSeconds = DefaultCheckInterval
	}
	if c.Failover.IdleIntervalSeconds == 0 {
		c.Failover.IdleIntervalSeconds = DefaultIdleInterval
	}
	if c.Failover.RouteMetric == 0 {
		c.Failover.RouteMetric = DefaultRouteMetric
	}
}

// Validate checks the configuration for semantic errors. A failed
// validation is fatal at startup.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	byRole := map[string]string{}
	for _, u := range c.Uplinks {
		if u.Role != RolePrimary && u.Role != RoleSecondary {
			return fmt.Errorf("uplink role must be %q or %q, got %q", RolePrimary, RoleSecondary, u.Role)
		}
		if u.Interface == "" {
			return fmt.Errorf("uplink %q: interface is required", u.Role)
		}
		if _, dup := byRole[u.Role]; dup {
			return fmt.Errorf("duplicate uplink block for role %q", u.Role)
		}
		byRole[u.Role] = u.Interface
	}
	if byRole[RolePrimary] == "" || byRole[RoleSecondary] == "" {
		return fmt.Errorf("both a primary and a secondary uplink must be configured")
	}
	if byRole[RolePrimary] == byRole[RoleSecondary] {
		return fmt.Errorf("primary and secondary uplinks must use distinct interfaces")
	}

	for _, t := range c.Probe.Targets {
		ip := net.ParseIP(t)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("probe target %q is not an IPv4 address", t)
		}
	}
	if c.Probe.Attempts < 1 {
		return fmt.Errorf("probe attempts must be at least 1, got %d", c.Probe.Attempts)
	}
	if c.Probe.TimeoutSeconds < 1 {
		return fmt.Errorf("probe timeout must be at least 1 second, got %d", c.Probe.TimeoutSeconds)
	}

	if c.Failover.Threshold < 1 {
		return fmt.Errorf("failover threshold must be at least 1, got %d", c.Failover.Threshold)
	}
	if c.Failover.RouteMetric < 1 {
		return fmt.Errorf("route_metric must be positive, got %d", c.Failover.RouteMetric)
	}
	return nil
}

// Interface returns the interface configured for the given role.
func (c *Config) Interface(role string) string {
	for _, u := range c.Uplinks {
		if u.Role == role {
			return u.Interface
		}
	}
	return ""
}

// ProbeTargets returns the parsed target addresses.
// Call only after Validate.
func (c *Config) ProbeTargets() []net.IP {
	ips := make([]net.IP, 0, len(c.Probe.Targets))
	for _, t := range c.Probe.Targets {
		ips = append(ips, net.ParseIP(t))
	}
	return ips
}

// ProbeTimeout returns the per-attempt probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// CheckInterval returns the normal end-of-cycle sleep.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Failover.CheckIntervalSeconds) * time.Second
}

// IdleInterval returns the sleep used in no-link and emergency states.
func (c *Config) IdleInterval() time.Duration {
	return time.Duration(c.Failover.IdleIntervalSeconds) * time.Second
}
