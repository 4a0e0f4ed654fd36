//go:build linux
// +build linux

package network

import (
	"fmt"
	"os"
	"strings"

	"github.com/safchain/ethtool"
)

// LinkInfo contains L1 status for an uplink interface.
type LinkInfo struct {
	Speed   uint32 // Mb/s, 0 when unknown
	Duplex  string // "full", "half", "unknown"
	Carrier bool
}

// GetLinkInfo returns link speed, duplex and carrier status for an interface.
// Speed and duplex come from ethtool with a sysfs fallback for virtual NICs.
func GetLinkInfo(iface string) (*LinkInfo, error) {
	info := &LinkInfo{Duplex: "unknown"}

	carrier, err := readCarrier(iface)
	if err != nil {
		return nil, err
	}
	info.Carrier = carrier

	h, err := ethtool.NewEthtool()
	if err != nil {
		// No ethtool support; fall back to sysfs only.
		info.Speed, info.Duplex = linkInfoFromSysfs(iface)
		return info, nil
	}
	defer h.Close()

	settings, err := h.GetLinkSettings(iface)
	if err != nil {
		info.Speed, info.Duplex = linkInfoFromSysfs(iface)
		return info, nil
	}

	info.Speed = settings.Speed
	switch settings.Duplex {
	case ethtool.DUPLEX_FULL:
		info.Duplex = "full"
	case ethtool.DUPLEX_HALF:
		info.Duplex = "half"
	}
	return info, nil
}

// readCarrier reads the carrier status from sysfs.
func readCarrier(iface string) (bool, error) {
	path := fmt.Sprintf("/sys/class/net/%s/carrier", iface)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("interface %s not found", iface)
		}
		// carrier reads fail with EINVAL while the link is administratively down
		return false, nil
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

func linkInfoFromSysfs(iface string) (uint32, string) {
	var speed uint32
	if data, err := os.ReadFile(fmt.Sprintf("/sys/class/net/%s/speed", iface)); err == nil {
		s := strings.TrimSpace(string(data))
		if s != "" && s != "-1" {
			fmt.Sscanf(s, "%d", &speed)
		}
	}

	duplex := "unknown"
	if data, err := os.ReadFile(fmt.Sprintf("/sys/class/net/%s/duplex", iface)); err == nil {
		d := strings.TrimSpace(string(data))
		if d == "full" || d == "half" {
			duplex = d
		}
	}
	return speed, duplex
}
