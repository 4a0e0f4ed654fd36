//go:build !linux
// +build !linux

package network

import "fmt"

// LinkInfo contains L1 status for an uplink interface.
type LinkInfo struct {
	Speed   uint32
	Duplex  string
	Carrier bool
}

// GetLinkInfo is not supported on this platform.
func GetLinkInfo(iface string) (*LinkInfo, error) {
	return nil, fmt.Errorf("link info not supported on this platform")
}
