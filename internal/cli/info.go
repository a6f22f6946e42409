package cli

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/cobra"

	"github.com/born-ml/armanet/internal/parallel"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print version and CPU details",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cpu := cpuid.CPU
			var features []string
			for _, f := range []cpuid.FeatureID{cpuid.SSE4, cpuid.AVX, cpuid.AVX2, cpuid.FMA3, cpuid.AVX512F, cpuid.ASIMD} {
				if cpu.Supports(f) {
					features = append(features, f.String())
				}
			}

			w := cmd.OutOrStdout()
			_, err := fmt.Fprintf(w, "armanet %s (commit %s, %s %s/%s)\n", Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "cpu      %s\ncores    %d physical, %d logical\ncache    L1d %s  L2 %s  L3 %s\nsimd     %s\nworkers  %d\n",
				cpu.BrandName, cpu.PhysicalCores, cpu.LogicalCores,
				kib(cpu.Cache.L1D), kib(cpu.Cache.L2), kib(cpu.Cache.L3),
				strings.Join(features, " "), parallel.DefaultConfig().NumWorkers)
			return err
		},
	}
}

func kib(n int) string {
	if n <= 0 {
		return "?"
	}
	return fmt.Sprintf("%dK", n/1024)
}
