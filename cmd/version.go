package cmd

import (
	"fmt"

	"grimm.is/uplinkd/internal/brand"
)

// RunVersion prints version and build information.
func RunVersion() {
	fmt.Printf("%s %s\n", brand.Name, brand.Version)
	if brand.GitCommit != "unknown" {
		fmt.Printf("  commit: %s\n", brand.GitCommit)
	}
	if brand.BuildTime != "unknown" {
		fmt.Printf("  built:  %s\n", brand.BuildTime)
	}
}
