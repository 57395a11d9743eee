package engine

import (
	"fmt"
	"math"

	"github.com/nvandessel/risp/internal/network"
	"github.com/nvandessel/risp/internal/rng"
)

// noiseStreamName is hashed into the noise generator's seed.
const noiseStreamName = "noisy_risp"

// resolver turns stored synapse weights and input spike amplitudes into
// charge deltas, drawing noise from the engine's own generator.
type resolver struct {
	opts Options
	rng  *rng.Source
}

func newResolver(opts Options) *resolver {
	return &resolver{opts: opts, rng: rng.New(opts.NoisySeed, noiseStreamName)}
}

// synapse resolves a stored weight: a literal value, or an index into the
// weight table, optionally sampled with the table's deviation, optionally
// perturbed by global noise.
func (r *resolver) synapse(stored float64) float64 {
	w := stored
	if len(r.opts.Weights) > 0 {
		idx := int(math.Round(stored))
		if len(r.opts.Stds) > 0 {
			w = r.rng.Normal(r.opts.Weights[idx], r.opts.Stds[idx])
		} else {
			w = r.opts.Weights[idx]
		}
	}
	if r.opts.NoisyStddev != 0 {
		w = r.rng.Normal(w, r.opts.NoisyStddev)
	}
	return w
}

// checkSpike validates a spike amplitude without consuming randomness.
func (r *resolver) checkSpike(s network.Spike, normalized bool) error {
	if math.IsNaN(s.Value) {
		return fmt.Errorf("%w: spike value is NaN", ErrRuntimeBounds)
	}
	if normalized && (s.Value < 0 || s.Value > 1) {
		return fmt.Errorf("%w: spike value (%g) must be in [0,1]", ErrRuntimeBounds, s.Value)
	}
	if !normalized && r.opts.Discrete && !isInteger(s.Value) {
		return fmt.Errorf("%w: spike value (%g) must be an integer when discrete", ErrRuntimeBounds, s.Value)
	}
	return nil
}

// spike resolves an input spike amplitude into charge. Call checkSpike first.
func (r *resolver) spike(s network.Spike, normalized bool) float64 {
	var v float64
	switch {
	case !normalized:
		v = s.Value
	case r.opts.InputsFromWeights && len(r.opts.Weights) > 0:
		idx := int(s.Value * float64(len(r.opts.Weights)))
		if idx >= len(r.opts.Weights) {
			idx = len(r.opts.Weights) - 1
		}
		if len(r.opts.Stds) > 0 {
			v = r.rng.Normal(r.opts.Weights[idx], r.opts.Stds[idx])
		} else {
			v = r.opts.Weights[idx]
		}
	default:
		v = s.Value * r.opts.SpikeValueFactor
		if r.opts.Discrete {
			v = math.Floor(v)
		}
	}
	if r.opts.NoisyStddev != 0 {
		v = r.rng.Normal(v, r.opts.NoisyStddev)
	}
	return v
}

// spikeTime validates a spike's time offset and returns it as a timestep.
func spikeTime(t float64) (int, error) {
	if math.IsNaN(t) || t < 0 {
		return 0, fmt.Errorf("%w: spike time (%g) must be >= 0", ErrRuntimeBounds, t)
	}
	if t > math.MaxInt32 {
		return 0, fmt.Errorf("%w: spike time (%g) is too large", ErrRuntimeBounds, t)
	}
	return int(t), nil
}
