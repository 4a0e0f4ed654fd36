//go:build !linux
// +build !linux

package network

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// DefaultNetlinker is the default RealNetlinker instance (stub).
var DefaultNetlinker Netlinker = &RealNetlinker{}

// RealNetlinker is a stub implementation of Netlinker.
type RealNetlinker struct{}

func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return nil, fmt.Errorf("LinkByName not supported on this platform")
}

func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return nil, fmt.Errorf("AddrList not supported on this platform")
}

func (r *RealNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	return nil, fmt.Errorf("RouteList not supported on this platform")
}

func (r *RealNetlinker) RouteAdd(route *netlink.Route) error {
	return fmt.Errorf("RouteAdd not supported on this platform")
}

func (r *RealNetlinker) RouteDel(route *netlink.Route) error {
	return fmt.Errorf("RouteDel not supported on this platform")
}
