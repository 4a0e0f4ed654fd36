package main

import (
	"flag"
	"fmt"
	"os"

	"grimm.is/uplinkd/cmd"
	"grimm.is/uplinkd/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		startFlags := flag.NewFlagSet("start", flag.ExitOnError)
		configFile := startFlags.String("config", "", "Configuration file")
		startFlags.StringVar(configFile, "c", "", "Configuration file (short)")
		startFlags.Parse(os.Args[2:])

		if err := cmd.RunStart(*configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Start failed: %v\n", err)
			os.Exit(1)
		}

	case "check":
		checkFlags := flag.NewFlagSet("check", flag.ExitOnError)
		withProbe := checkFlags.Bool("probe", false, "Probe targets through both uplinks")
		checkFlags.BoolVar(withProbe, "p", false, "Probe targets (short)")
		checkFlags.Parse(os.Args[2:])

		configFile := ""
		if len(checkFlags.Args()) > 0 {
			configFile = checkFlags.Arg(0)
		}

		if err := cmd.RunCheck(configFile, *withProbe); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}

	case "version", "--version", "-v":
		cmd.RunVersion()

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("%s - %s\n\n", brand.BinaryName, brand.Description)
	fmt.Println("Usage:")
	fmt.Printf("  %s start [-c config]         Run the monitoring daemon\n", brand.BinaryName)
	fmt.Printf("  %s check [-p] [config]       Validate config and show uplink state\n", brand.BinaryName)
	fmt.Printf("  %s version                   Show version information\n", brand.BinaryName)
	fmt.Println()
	fmt.Printf("Default config: %s\n", brand.DefaultConfigFile())
}
