//go:build linux
// +build linux

package network

import (
	"github.com/vishvananda/netlink"
)

// DefaultNetlinker is the default RealNetlinker instance.
var DefaultNetlinker Netlinker = &RealNetlinker{}

// RealNetlinker talks to the kernel routing subsystem via netlink.
type RealNetlinker struct{}

func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (r *RealNetlinker) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

func (r *RealNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	return netlink.RouteList(link, family)
}

func (r *RealNetlinker) RouteAdd(route *netlink.Route) error {
	return netlink.RouteAdd(route)
}

func (r *RealNetlinker) RouteDel(route *netlink.Route) error {
	return netlink.RouteDel(route)
}
