// Package probe tests reachability of a fixed set of reference addresses
// through a given uplink by sending ICMP echo requests bound to that
// uplink's source address.
package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingFunc sends a single echo request to target from src and returns nil
// when a reply arrives within timeout.
type PingFunc func(ctx context.Context, target string, src net.IP, timeout time.Duration) error

// Prober counts unreachable targets for one uplink per cycle. It holds no
// mutable state, so the same instance may be used concurrently for both
// uplinks.
type Prober struct {
	Targets  []net.IP
	Attempts int
	Timeout  time.Duration

	// Ping can be overridden in tests. Defaults to a pro-bing echo.
	Ping PingFunc
}

// New creates a Prober for the given target set.
func New(targets []net.IP, attempts int, timeout time.Duration) *Prober {
	return &Prober{
		Targets:  targets,
		Attempts: attempts,
		Timeout:  timeout,
		Ping:     pingOnce,
	}
}

// Unreachable probes every target and returns how many of them never
// replied. A target counts as reachable if any of the bounded attempts
// succeeds. When ctx is cancelled the remaining targets are reported
// unreachable; the caller discards results from a cancelled cycle.
func (p *Prober) Unreachable(ctx context.Context, src net.IP) int {
	unreachable := 0
	for _, target := range p.Targets {
		if !p.reachable(ctx, target, src) {
			unreachable++
		}
	}
	return unreachable
}

func (p *Prober) reachable(ctx context.Context, target, src net.IP) bool {
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if ctx.Err() != nil {
			return false
		}
		if err := p.Ping(ctx, target.String(), src, p.Timeout); err == nil {
			return true
		}
	}
	return false
}

// pingOnce sends one unprivileged ICMP echo and waits for the reply.
func pingOnce(ctx context.Context, target string, src net.IP, timeout time.Duration) error {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return fmt.Errorf("failed to create pinger: %w", err)
	}

	pinger.Count = 1
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)
	if src != nil {
		pinger.Source = src.String()
	}

	if err := pinger.RunWithContext(ctx); err != nil {
		return err
	}
	if pinger.Statistics().PacketsRecv == 0 {
		return fmt.Errorf("no reply from %s", target)
	}
	return nil
}
