package sysinfo

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiorouter/internal/sysinfo"
)

const skipInit = "skip-init"

// Command creates the sysinfo command.
func Command() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "sysinfo",
		Short:       "Print host CPU, memory and platform details",
		Annotations: map[string]string{skipInit: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			report := sysinfo.Collect(cmd.Context())
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Fprintf(w, "OS:        %s/%s %s %s\n", report.OS, report.Arch, report.Platform, report.PlatformVersion)
			fmt.Fprintf(w, "Kernel:    %s\n", report.KernelVersion)
			fmt.Fprintf(w, "CPU:       %s (%s)\n", report.CPU.BrandName, report.CPU.Vendor)
			fmt.Fprintf(w, "Cores:     %d physical, %d logical, GOMAXPROCS %d\n",
				report.CPU.PhysicalCores, report.CPU.LogicalCores, report.GOMAXPROCS)
			fmt.Fprintf(w, "Vector:    %s\n", strings.Join(report.CPU.Features, " "))
			fmt.Fprintf(w, "CPU load:  %.1f%%\n", report.CPU.UsagePercent)
			fmt.Fprintf(w, "Memory:    %d MiB total, %d MiB available (%.1f%% used)\n",
				report.MemoryTotal>>20, report.MemoryAvailable>>20, report.MemoryUsed)
			fmt.Fprintf(w, "Go:        %s\n", report.GoVersion)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
