package main

import (
	"github.com/spf13/cobra"

	"github.com/nvandessel/risp/internal/hostcpu"
)

func newHostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Print host CPU information",
		Long: `Print the host CPU model, SIMD extensions and the lane width the
vectorized engine uses when lanes are set to auto (RISP_LANES=auto).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printOut(cmd, hostcpu.Describe())
		},
	}
}
