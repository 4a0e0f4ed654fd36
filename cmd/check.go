package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"text/tabwriter"

	"golang.org/x/sys/unix"

	"grimm.is/uplinkd/internal/brand"
	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/network"
	"grimm.is/uplinkd/internal/probe"
)

// RunCheck validates the configuration file and prints the current state of
// both uplinks. With withProbe set it also runs one probe round per uplink.
func RunCheck(configFile string, withProbe bool) error {
	if configFile == "" {
		configFile = brand.DefaultConfigFile()
	}

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid!")
	fmt.Printf("Probe targets: %d, threshold: %d, route metric: %d\n",
		len(cfg.Probe.Targets), cfg.Failover.Threshold, cfg.Failover.RouteMetric)
	if cfg.Failover.TunnelService != "" {
		fmt.Printf("Tunnel service: %s\n", cfg.Failover.TunnelService)
	}
	fmt.Println()

	nl := network.DefaultNetlinker

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tINTERFACE\tADDRESS\tCARRIER\tLINK")
	for _, role := range []string{config.RolePrimary, config.RoleSecondary} {
		iface := cfg.Interface(role)

		addr := "-"
		if ip := firstIPv4(nl, iface); ip != nil {
			addr = ip.String()
		}

		carrier, speed := "-", "-"
		if info, err := network.GetLinkInfo(iface); err == nil {
			carrier = "no"
			if info.Carrier {
				carrier = "yes"
			}
			if info.Speed > 0 {
				speed = fmt.Sprintf("%d Mb/s %s", info.Speed, info.Duplex)
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", role, iface, addr, carrier, speed)
	}
	w.Flush()

	if withProbe {
		fmt.Println()
		p := probe.New(cfg.ProbeTargets(), cfg.Probe.Attempts, cfg.ProbeTimeout())
		for _, role := range []string{config.RolePrimary, config.RoleSecondary} {
			iface := cfg.Interface(role)
			src := firstIPv4(nl, iface)
			if src == nil {
				fmt.Printf("%s (%s): no address, skipping probe\n", role, iface)
				continue
			}
			n := p.Unreachable(context.Background(), src)
			fmt.Printf("%s (%s): %d/%d targets unreachable\n", role, iface, n, len(p.Targets))
		}
	}
	return nil
}

func firstIPv4(nl network.Netlinker, iface string) net.IP {
	link, err := nl.LinkByName(iface)
	if err != nil {
		return nil
	}
	addrs, err := nl.AddrList(link, unix.AF_INET)
	if err != nil || len(addrs) == 0 {
		return nil
	}
	return addrs[0].IP
}
