package failover

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/network"
)

const (
	primaryAddr   = "192.0.2.2"
	secondaryAddr = "198.51.100.2"
)

type fixture struct {
	cfg *config.Config
	nl  *network.MockNetlinker
	cmd *network.MockCommandExecutor
	c   *Controller

	failingSources map[string]bool
	pingCalls      int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		Uplinks: []config.Uplink{
			{Role: config.RolePrimary, Interface: "wan0"},
			{Role: config.RoleSecondary, Interface: "wan1"},
		},
		Failover: &config.Failover{TunnelService: "vpn-tunnel"},
	}
	cfg.ApplyDefaults()

	f := &fixture{
		cfg:            cfg,
		nl:             &network.MockNetlinker{},
		cmd:            &network.MockCommandExecutor{},
		failingSources: map[string]bool{},
	}
	f.c = NewController(cfg, f.nl, f.cmd, testLogger())
	f.c.prober.Ping = func(ctx context.Context, target string, src net.IP, timeout time.Duration) error {
		f.pingCalls++
		if f.failingSources[src.String()] {
			return errors.New("timeout")
		}
		return nil
	}
	return f
}

// wire sets up static link, address and route-table state. Empty address
// strings leave the interface unaddressed.
func (f *fixture) wire(primary, secondary string, routes []netlink.Route) {
	link0 := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Index: 2, Name: "wan0"}}
	link1 := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Index: 3, Name: "wan1"}}
	f.nl.On("LinkByName", "wan0").Return(link0, nil)
	f.nl.On("LinkByName", "wan1").Return(link1, nil)
	f.nl.On("AddrList", link0, unix.AF_INET).Return(addrs(primary), nil)
	f.nl.On("AddrList", link1, unix.AF_INET).Return(addrs(secondary), nil)
	f.nl.On("RouteList", link1, unix.AF_INET).Return(routes, nil)
}

func addrs(ip string) []netlink.Addr {
	if ip == "" {
		return nil
	}
	return []netlink.Addr{
		{IPNet: &net.IPNet{IP: net.ParseIP(ip), Mask: net.CIDRMask(24, 32)}},
	}
}

func TestRunCycle_SteadyState(t *testing.T) {
	// Scenario: both uplinks healthy for many cycles.
	f := newFixture(t)
	f.wire(primaryAddr, secondaryAddr, []netlink.Route{defaultRoute("10.0.0.1", 10)})

	for i := 0; i < 10; i++ {
		interval, err := f.c.runCycle(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, f.cfg.CheckInterval(), interval)
	}

	f.nl.AssertNotCalled(t, "RouteAdd", mock.Anything)
	f.nl.AssertNotCalled(t, "RouteDel", mock.Anything)
	assert.Equal(t, 0, f.c.tracker.Counter(Primary))
	assert.Equal(t, 0, f.c.tracker.Counter(Secondary))
}

func TestRunCycle_FailoverAfterThreshold(t *testing.T) {
	// Scenario: primary loses all targets while the secondary stays clean.
	f := newFixture(t)
	f.wire(primaryAddr, secondaryAddr, []netlink.Route{defaultRoute("10.0.0.1", 10)})
	f.failingSources[primaryAddr] = true

	for i := 0; i < 2; i++ {
		_, err := f.c.runCycle(context.Background())
		assert.NoError(t, err)
	}
	f.nl.AssertNotCalled(t, "RouteAdd", mock.Anything)
	assert.Equal(t, 2, f.c.tracker.Counter(Primary))

	f.nl.On("RouteAdd", &netlink.Route{
		LinkIndex: 3,
		Gw:        net.ParseIP("10.0.0.1").To4(),
		Priority:  200,
	}).Return(nil).Once()

	_, err := f.c.runCycle(context.Background())
	assert.NoError(t, err)
	assert.True(t, f.c.rc.UsingSecondary())
	f.nl.AssertExpectations(t)
}

func TestRunCycle_NoFailoverWhenBothDown(t *testing.T) {
	f := newFixture(t)
	f.wire(primaryAddr, secondaryAddr, []netlink.Route{defaultRoute("10.0.0.1", 10)})
	f.failingSources[primaryAddr] = true
	f.failingSources[secondaryAddr] = true

	for i := 0; i < 5; i++ {
		_, err := f.c.runCycle(context.Background())
		assert.NoError(t, err)
	}

	f.nl.AssertNotCalled(t, "RouteAdd", mock.Anything)
	assert.True(t, f.c.tracker.Down(Primary))
	assert.True(t, f.c.tracker.Down(Secondary))
}

func TestRunCycle_FailbackWhenPrimaryRecovers(t *testing.T) {
	// Scenario: on secondary, primary comes back clean for one cycle.
	f := newFixture(t)
	f.wire(primaryAddr, secondaryAddr, []netlink.Route{
		defaultRoute("10.0.0.1", 10),
		defaultRoute("10.0.0.1", 200), // our failover route
	})

	f.nl.On("RouteDel", &netlink.Route{LinkIndex: 3, Priority: 200}).Return(nil).Once()
	f.cmd.On("RunCommand", "systemctl", "restart", "vpn-tunnel").Return("", nil).Once()

	interval, err := f.c.runCycle(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, f.cfg.CheckInterval(), interval)
	assert.False(t, f.c.rc.UsingSecondary())
	f.nl.AssertExpectations(t)
	f.cmd.AssertExpectations(t)
}

func TestRunCycle_NoFailbackWhilePrimaryCounterNonzero(t *testing.T) {
	f := newFixture(t)
	f.wire(primaryAddr, secondaryAddr, []netlink.Route{
		defaultRoute("10.0.0.1", 10),
		defaultRoute("10.0.0.1", 200),
	})

	// Primary keeps failing, so its counter stays nonzero.
	f.c.tracker.Observe(Primary, 2)
	f.failingSources[primaryAddr] = true

	_, err := f.c.runCycle(context.Background())
	assert.NoError(t, err)

	assert.True(t, f.c.rc.UsingSecondary())
	f.nl.AssertNotCalled(t, "RouteDel", mock.Anything)
}

func TestRunCycle_NoLink(t *testing.T) {
	// Scenario: neither interface holds an address.
	f := newFixture(t)
	f.wire("", "", nil)

	interval, err := f.c.runCycle(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, f.cfg.IdleInterval(), interval, "no-link state uses the long interval")
	assert.Equal(t, 0, f.pingCalls, "no probing in no-link state")
	f.nl.AssertNotCalled(t, "RouteList", mock.Anything, mock.Anything)
}

func TestRunCycle_EmergencyFailbackWithoutGateway(t *testing.T) {
	// Scenario: on secondary with primary counter below threshold, but the
	// secondary's own gateway is gone. Counters are bypassed.
	f := newFixture(t)
	f.wire(primaryAddr, secondaryAddr, []netlink.Route{
		defaultRoute("10.0.0.1", 200), // only our own route remains
	})

	f.c.tracker.Observe(Primary, 2)
	f.c.tracker.Observe(Primary, 2)
	assert.Equal(t, 2, f.c.tracker.Counter(Primary))

	f.nl.On("RouteDel", &netlink.Route{LinkIndex: 3, Priority: 200}).Return(nil).Once()
	f.cmd.On("RunCommand", "systemctl", "restart", "vpn-tunnel").Return("", nil).Once()

	interval, err := f.c.runCycle(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, f.cfg.IdleInterval(), interval)
	assert.Equal(t, 0, f.pingCalls, "emergency path skips probing")
	assert.False(t, f.c.rc.UsingSecondary())
	f.nl.AssertExpectations(t)
}

func TestRunCycle_UnaddressedPrimaryCountsAsUnreachable(t *testing.T) {
	f := newFixture(t)
	f.wire("", secondaryAddr, []netlink.Route{defaultRoute("10.0.0.1", 10)})

	_, err := f.c.runCycle(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, 1, f.c.tracker.Counter(Primary), "unaddressed uplink fails the whole target set")
	assert.Equal(t, 0, f.c.tracker.Counter(Secondary))
}

func TestRunCycle_CancelledContextAbandonsCycle(t *testing.T) {
	f := newFixture(t)
	f.wire(primaryAddr, secondaryAddr, []netlink.Route{defaultRoute("10.0.0.1", 10)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.c.runCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// No decision was applied.
	f.nl.AssertNotCalled(t, "RouteAdd", mock.Anything)
	f.nl.AssertNotCalled(t, "RouteDel", mock.Anything)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.wire(primaryAddr, secondaryAddr, []netlink.Route{defaultRoute("10.0.0.1", 10)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.c.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop on cancellation")
	}
}

func TestSecondaryGateway_Validation(t *testing.T) {
	tests := []struct {
		name   string
		routes []netlink.Route
		wantGW string
	}{
		{"no default route", nil, ""},
		{"only our own route", []netlink.Route{defaultRoute("10.0.0.1", 200)}, ""},
		{"gateway missing", []netlink.Route{{Priority: 10}}, ""},
		{"gateway not ipv4", []netlink.Route{{Gw: net.ParseIP("fe80::1"), Priority: 10}}, ""},
		{"gateway mangled", []netlink.Route{{Gw: net.IP{10, 0}, Priority: 10}}, ""},
		{"valid", []netlink.Route{defaultRoute("10.0.0.1", 10)}, "10.0.0.1"},
		{"lowest metric wins", []netlink.Route{
			defaultRoute("10.0.0.9", 50),
			defaultRoute("10.0.0.1", 10),
			defaultRoute("10.0.0.5", 200),
		}, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			link1 := &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Index: 3, Name: "wan1"}}
			f.nl.On("LinkByName", "wan1").Return(link1, nil)
			f.nl.On("RouteList", link1, unix.AF_INET).Return(tt.routes, nil)

			gw, err := f.c.secondaryGateway()
			if tt.wantGW == "" {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantGW, gw.String())
			}
		})
	}
}
