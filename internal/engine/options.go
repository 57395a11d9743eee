package engine

import "fmt"

// LeakMode selects how neuron leak is configured.
type LeakMode string

const (
	LeakAll          LeakMode = "all"
	LeakNone         LeakMode = "none"
	LeakConfigurable LeakMode = "configurable"
)

// ParseLeakMode validates a leak mode name.
func ParseLeakMode(s string) (LeakMode, error) {
	switch LeakMode(s) {
	case LeakAll, LeakNone, LeakConfigurable:
		return LeakMode(s), nil
	}
	return "", fmt.Errorf("%w: bad leak_mode %q (valid: all, none, configurable)", ErrConfiguration, s)
}

// Kind selects an engine implementation.
type Kind string

const (
	KindScalar     Kind = "scalar"
	KindVectorized Kind = "vectorized"
)

// DefaultLanes is the vector width the vectorized engine aligns to.
const DefaultLanes = 16

// maxLanes bounds the per-block scratch arrays of the vectorized engine.
const maxLanes = 64

// Options is the complete per-instance engine configuration. The legacy
// compatibility switches live here rather than being threaded through calls.
type Options struct {
	// SpikeValueFactor scales normalized input spikes into charge.
	SpikeValueFactor float64

	// MinPotential is the floor charge is clamped to. Must be <= 0.
	MinPotential float64

	Leak LeakMode

	// RunTimeInclusive makes Run(d) process d+1 timesteps instead of d.
	RunTimeInclusive bool

	// ThresholdInclusive fires on charge >= threshold; otherwise on >.
	ThresholdInclusive bool

	// FireLikeRavens defers fire bookkeeping by one timestep.
	FireLikeRavens bool

	// Discrete forces integral weights, thresholds and potentials.
	Discrete bool

	// InputsFromWeights maps normalized spike values onto Weights buckets.
	InputsFromWeights bool

	NoisySeed   uint32
	NoisyStddev float64

	// Weights, when non-empty, turns synapse weights into table indices.
	Weights []float64

	// Stds, when non-empty, samples Normal(Weights[i], Stds[i]).
	Stds []float64

	// MaxDelay bounds synapse delays. Zero disables the check.
	MaxDelay int

	// TrackedTimesteps is the ring-buffer length of the vectorized engine.
	TrackedTimesteps int

	// Lanes is the vectorized engine's alignment width. Zero means DefaultLanes.
	Lanes int
}

func (o Options) lanes() int {
	if o.Lanes == 0 {
		return DefaultLanes
	}
	return o.Lanes
}

// steps converts a run duration into a timestep count.
func (o Options) steps(duration float64) (int, error) {
	if duration < 0 || duration != duration {
		return 0, fmt.Errorf("%w: run duration %g must be >= 0", ErrRuntimeBounds, duration)
	}
	n := int(duration)
	if o.RunTimeInclusive {
		n++
	}
	return n, nil
}

func checkScalarOptions(opts Options) error {
	if _, err := ParseLeakMode(string(opts.Leak)); err != nil {
		return err
	}
	if opts.MinPotential > 0 {
		return fmt.Errorf("%w: min_potential (%g) must be <= 0", ErrConfiguration, opts.MinPotential)
	}
	if opts.MaxDelay < 0 {
		return fmt.Errorf("%w: max_delay (%d) must be >= 0", ErrConfiguration, opts.MaxDelay)
	}
	if len(opts.Stds) > 0 && len(opts.Stds) != len(opts.Weights) {
		return fmt.Errorf("%w: %d stds for %d weights", ErrConfiguration, len(opts.Stds), len(opts.Weights))
	}
	if opts.InputsFromWeights && len(opts.Weights) == 0 {
		return fmt.Errorf("%w: inputs_from_weights requires a weight table", ErrConfiguration)
	}
	return nil
}
