package hostcpu

import (
	"slices"
	"testing"
)

func TestLaneWidthFromFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		want  int
	}{
		{"none", nil, DefaultLaneWidth},
		{"sse only", []string{"sse", "sse2", "sse4_2"}, DefaultLaneWidth},
		{"avx2", []string{"sse4_2", "avx", "avx2"}, 32},
		{"avx512", []string{"avx2", "avx512f", "avx512bw"}, 64},
		{"upper case", []string{"AVX2"}, 32},
		{"arm", []string{"fp", "asimd"}, DefaultLaneWidth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := laneWidthFromFlags(tt.flags); got != tt.want {
				t.Errorf("laneWidthFromFlags(%v) = %d, want %d", tt.flags, got, tt.want)
			}
		})
	}
}

func TestLaneWidth(t *testing.T) {
	switch w := LaneWidth(); w {
	case 16, 32, 64:
	default:
		t.Errorf("LaneWidth() = %d, want 16, 32 or 64", w)
	}
}

func TestFilterFlags(t *testing.T) {
	got := filterFlags([]string{"fpu", "avx2", "sse4_2", "avx512f", "avx"})
	want := []string{"avx512f", "avx2", "avx", "sse4_2"}
	if !slices.Equal(got, want) {
		t.Errorf("filterFlags = %v, want %v", got, want)
	}
}

func TestDescribe(t *testing.T) {
	info := Describe()
	if info.Arch == "" {
		t.Error("Arch should always be set")
	}
	if info.LaneWidth == 0 {
		t.Error("LaneWidth should never be zero")
	}
}
