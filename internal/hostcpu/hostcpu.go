// Package hostcpu inspects the host CPU to size the vectorized engine's lanes.
package hostcpu

import (
	"runtime"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
)

// DefaultLaneWidth is used when no wide SIMD extension is detected.
const DefaultLaneWidth = 16

// Info summarizes the host for the CLI's host command.
type Info struct {
	Model     string   `json:"model" yaml:"model"`
	Cores     int      `json:"cores" yaml:"cores"`
	Arch      string   `json:"arch" yaml:"arch"`
	Flags     []string `json:"simd_flags" yaml:"simd_flags"`
	LaneWidth int      `json:"lane_width" yaml:"lane_width"`
}

// simdFlags are the flags reported in Info, widest first.
var simdFlags = []string{"avx512f", "avx2", "avx", "sse4_2", "asimd", "neon"}

// LaneWidth returns the int8 lane count of the widest vector unit on this
// host: 64 with AVX-512, 32 with AVX2, DefaultLaneWidth otherwise or when
// the CPU cannot be queried.
func LaneWidth() int {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return DefaultLaneWidth
	}
	return laneWidthFromFlags(infos[0].Flags)
}

func laneWidthFromFlags(flags []string) int {
	has := func(name string) bool {
		return slices.ContainsFunc(flags, func(f string) bool { return strings.EqualFold(f, name) })
	}
	switch {
	case has("avx512f"):
		return 64
	case has("avx2"):
		return 32
	default:
		return DefaultLaneWidth
	}
}

// Describe collects host information. Fields that cannot be read are left
// zero.
func Describe() Info {
	info := Info{Arch: runtime.GOARCH, LaneWidth: DefaultLaneWidth}
	if n, err := cpu.Counts(true); err == nil {
		info.Cores = n
	}
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 {
		return info
	}
	info.Model = infos[0].ModelName
	info.Flags = filterFlags(infos[0].Flags)
	info.LaneWidth = laneWidthFromFlags(infos[0].Flags)
	return info
}

func filterFlags(flags []string) []string {
	var out []string
	for _, want := range simdFlags {
		for _, f := range flags {
			if strings.EqualFold(f, want) {
				out = append(out, want)
				break
			}
		}
	}
	return out
}
