package processor

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/nvandessel/risp/internal/engine"
)

// Params is the constructor configuration of a Processor. Optional fields
// whose presence changes validation are pointers.
type Params struct {
	Engine engine.Kind `yaml:"engine,omitempty" json:"engine,omitempty"`

	MinWeight         *float64  `yaml:"min_weight,omitempty" json:"min_weight,omitempty"`
	MaxWeight         *float64  `yaml:"max_weight,omitempty" json:"max_weight,omitempty"`
	Weights           []float64 `yaml:"weights,omitempty" json:"weights,omitempty"`
	Stds              []float64 `yaml:"stds,omitempty" json:"stds,omitempty"`
	InputsFromWeights *bool     `yaml:"inputs_from_weights,omitempty" json:"inputs_from_weights,omitempty"`

	MinThreshold float64 `yaml:"min_threshold" json:"min_threshold"`
	MaxThreshold float64 `yaml:"max_threshold" json:"max_threshold"`
	MinPotential float64 `yaml:"min_potential" json:"min_potential"`
	MaxDelay     int     `yaml:"max_delay" json:"max_delay"`
	Discrete     bool    `yaml:"discrete" json:"discrete"`

	LeakMode           engine.LeakMode `yaml:"leak_mode,omitempty" json:"leak_mode,omitempty"`
	RunTimeInclusive   bool            `yaml:"run_time_inclusive,omitempty" json:"run_time_inclusive,omitempty"`
	ThresholdInclusive *bool           `yaml:"threshold_inclusive,omitempty" json:"threshold_inclusive,omitempty"`
	FireLikeRavens     bool            `yaml:"fire_like_ravens,omitempty" json:"fire_like_ravens,omitempty"`

	NoisySeed        uint32   `yaml:"noisy_seed,omitempty" json:"noisy_seed,omitempty"`
	NoisyStddev      float64  `yaml:"noisy_stddev,omitempty" json:"noisy_stddev,omitempty"`
	SpikeValueFactor *float64 `yaml:"spike_value_factor,omitempty" json:"spike_value_factor,omitempty"`

	// TrackedTimesteps and Lanes apply to the vectorized engine only.
	TrackedTimesteps int `yaml:"tracked_timesteps,omitempty" json:"tracked_timesteps,omitempty"`
	Lanes            int `yaml:"lanes,omitempty" json:"lanes,omitempty"`

	// Unknown collects keys that match no field, so retired parameter names
	// can be reported instead of silently ignored.
	Unknown map[string]any `yaml:",inline" json:"-"`
}

// Float returns a pointer to v, for optional Params fields.
func Float(v float64) *float64 { return &v }

// Bool returns a pointer to v, for optional Params fields.
func Bool(v bool) *bool { return &v }

// legacyParams maps retired parameter names to their replacement advice.
var legacyParams = map[string]string{
	"input_scaling_value": "use spike_value_factor instead",
	"non_negative_charge": "set min_potential to zero instead",
	"specific_weights":    "set the weights array instead",
	"noisy_weights":       "set the stds array instead",
}

// settings is a validated Params with every default filled in.
type settings struct {
	kind   engine.Kind
	params Params
	opts   engine.Options

	// warning is a non-fatal note produced while applying defaults.
	warning string
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{engine.ErrConfiguration}, args...)...)
}

func isInteger(v float64) bool {
	return v == math.Trunc(v) && !math.IsInf(v, 0)
}

// resolve validates p and derives the engine options.
func resolve(p Params) (*settings, error) {
	if err := checkUnknown(p.Unknown); err != nil {
		return nil, err
	}

	kind := p.Engine
	if kind == "" {
		kind = engine.KindScalar
	}
	switch kind {
	case engine.KindScalar:
		return resolveScalar(p)
	case engine.KindVectorized:
		return resolveVectorized(p)
	}
	return nil, configErr("unknown engine %q (valid: scalar, vectorized)", p.Engine)
}

func checkUnknown(unknown map[string]any) error {
	if len(unknown) == 0 {
		return nil
	}
	keys := make([]string, 0, len(unknown))
	for k := range unknown {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var msgs []string
	for _, k := range keys {
		if advice, ok := legacyParams[k]; ok {
			msgs = append(msgs, fmt.Sprintf("%s is no longer supported; %s", k, advice))
		} else {
			msgs = append(msgs, fmt.Sprintf("unknown parameter %s", k))
		}
	}
	return configErr("%s", strings.Join(msgs, "; "))
}

// resolveCommon applies the checks and defaults shared by both engines.
func resolveCommon(p Params) (Params, error) {
	if p.LeakMode == "" {
		p.LeakMode = engine.LeakNone
	}
	if _, err := engine.ParseLeakMode(string(p.LeakMode)); err != nil {
		return p, err
	}
	if p.ThresholdInclusive == nil {
		p.ThresholdInclusive = Bool(true)
	}
	if p.MinThreshold > p.MaxThreshold {
		return p, configErr("min_threshold (%g) > max_threshold (%g)", p.MinThreshold, p.MaxThreshold)
	}
	if p.MinPotential > 0 {
		return p, configErr("min_potential (%g) must be <= 0", p.MinPotential)
	}
	if p.MaxDelay < 0 {
		return p, configErr("max_delay (%d) must be >= 0", p.MaxDelay)
	}
	return p, nil
}

func resolveScalar(p Params) (*settings, error) {
	p, err := resolveCommon(p)
	if err != nil {
		return nil, err
	}
	s := &settings{kind: engine.KindScalar}

	if len(p.Weights) > 0 {
		if p.MinWeight != nil || p.MaxWeight != nil {
			return nil, configErr("cannot have weights together with min_weight or max_weight")
		}
		if p.InputsFromWeights == nil {
			return nil, configErr("weights require inputs_from_weights to be set")
		}
		if !slices.IsSorted(p.Weights) {
			return nil, configErr("weights must be sorted")
		}
		if *p.InputsFromWeights && p.SpikeValueFactor != nil {
			return nil, configErr("spike_value_factor cannot be set when inputs_from_weights is true")
		}
		if !*p.InputsFromWeights && p.SpikeValueFactor == nil {
			return nil, configErr("spike_value_factor is required when inputs_from_weights is false")
		}
	} else {
		if p.MinWeight == nil || p.MaxWeight == nil {
			return nil, configErr("min_weight and max_weight are required without weights")
		}
		if p.InputsFromWeights != nil {
			return nil, configErr("inputs_from_weights requires weights")
		}
		if *p.MinWeight > *p.MaxWeight {
			return nil, configErr("min_weight (%g) > max_weight (%g)", *p.MinWeight, *p.MaxWeight)
		}
	}

	if p.Discrete {
		if p.MinWeight != nil && (!isInteger(*p.MinWeight) || !isInteger(*p.MaxWeight)) {
			return nil, configErr("min_weight and max_weight must be integers when discrete")
		}
		if !isInteger(p.MinPotential) {
			return nil, configErr("min_potential must be an integer when discrete")
		}
		if !isInteger(p.MinThreshold) || !isInteger(p.MaxThreshold) {
			return nil, configErr("min_threshold and max_threshold must be integers when discrete")
		}
		for _, w := range p.Weights {
			if !isInteger(w) {
				return nil, configErr("all weights must be integers when discrete")
			}
		}
		if len(p.Stds) > 0 {
			return nil, configErr("stds cannot be used when discrete")
		}
		if p.NoisyStddev != 0 {
			return nil, configErr("noisy_stddev cannot be used when discrete")
		}
	}
	if len(p.Stds) > 0 {
		if len(p.Weights) != len(p.Stds) {
			return nil, configErr("stds requires weights of the same size (%d weights, %d stds)", len(p.Weights), len(p.Stds))
		}
		if p.NoisyStddev != 0 {
			return nil, configErr("cannot specify both noisy_stddev and stds")
		}
	}
	p.TrackedTimesteps, p.Lanes = 0, 0

	inputsFromWeights := p.InputsFromWeights != nil && *p.InputsFromWeights
	var factor float64
	switch {
	case p.SpikeValueFactor != nil:
		factor = *p.SpikeValueFactor
	case inputsFromWeights:
		// Unused: spike amplitudes select a weight bucket instead.
	default:
		factor = *p.MaxWeight
		p.SpikeValueFactor = Float(factor)
		if factor < p.MaxThreshold || (!*p.ThresholdInclusive && factor == p.MaxThreshold) {
			s.warning = fmt.Sprintf("max_weight %g is below max_threshold %g and spike_value_factor is unset; spike_value_factor set to %g",
				factor, p.MaxThreshold, factor)
		}
	}

	p.Engine = engine.KindScalar
	s.params = p
	s.opts = engine.Options{
		SpikeValueFactor:   factor,
		MinPotential:       p.MinPotential,
		Leak:               p.LeakMode,
		RunTimeInclusive:   p.RunTimeInclusive,
		ThresholdInclusive: *p.ThresholdInclusive,
		FireLikeRavens:     p.FireLikeRavens,
		Discrete:           p.Discrete,
		InputsFromWeights:  inputsFromWeights,
		NoisySeed:          p.NoisySeed,
		NoisyStddev:        p.NoisyStddev,
		Weights:            slices.Clone(p.Weights),
		Stds:               slices.Clone(p.Stds),
		MaxDelay:           p.MaxDelay,
	}
	if err := engine.CheckOptions(engine.KindScalar, s.opts); err != nil {
		return nil, err
	}
	return s, nil
}

func resolveVectorized(p Params) (*settings, error) {
	p, err := resolveCommon(p)
	if err != nil {
		return nil, err
	}

	if len(p.Weights) > 0 || len(p.Stds) > 0 || p.InputsFromWeights != nil {
		return nil, configErr("the vectorized engine does not support weights, stds or inputs_from_weights")
	}
	if p.NoisyStddev != 0 {
		return nil, configErr("the vectorized engine does not support noise")
	}
	if p.FireLikeRavens {
		return nil, configErr("the vectorized engine does not support fire_like_ravens")
	}
	if p.MinWeight == nil || p.MaxWeight == nil {
		return nil, configErr("min_weight and max_weight are required")
	}
	if *p.MinWeight > *p.MaxWeight {
		return nil, configErr("min_weight (%g) > max_weight (%g)", *p.MinWeight, *p.MaxWeight)
	}
	bounds := []struct {
		name string
		v    float64
	}{
		{"min_weight", *p.MinWeight},
		{"max_weight", *p.MaxWeight},
		{"min_threshold", p.MinThreshold},
		{"max_threshold", p.MaxThreshold},
		{"min_potential", p.MinPotential},
	}
	for _, b := range bounds {
		if !isInteger(b.v) {
			return nil, configErr("%s (%g) must be an integer", b.name, b.v)
		}
		if b.v < math.MinInt8 || b.v > math.MaxInt8 {
			return nil, configErr("%s (%g) does not fit int8", b.name, b.v)
		}
	}
	if p.TrackedTimesteps == 0 {
		return nil, configErr("tracked_timesteps is required")
	}
	if p.MaxDelay >= p.TrackedTimesteps {
		return nil, configErr("max_delay (%d) must be < tracked_timesteps (%d)", p.MaxDelay, p.TrackedTimesteps)
	}

	factor := *p.MaxWeight
	if p.SpikeValueFactor != nil {
		factor = *p.SpikeValueFactor
	}
	p.SpikeValueFactor = Float(factor)
	p.Discrete = true
	p.Engine = engine.KindVectorized

	opts := engine.Options{
		SpikeValueFactor:   factor,
		MinPotential:       p.MinPotential,
		Leak:               p.LeakMode,
		RunTimeInclusive:   p.RunTimeInclusive,
		ThresholdInclusive: *p.ThresholdInclusive,
		Discrete:           true,
		MaxDelay:           p.MaxDelay,
		TrackedTimesteps:   p.TrackedTimesteps,
		Lanes:              p.Lanes,
	}
	if err := engine.CheckOptions(engine.KindVectorized, opts); err != nil {
		return nil, err
	}
	return &settings{kind: engine.KindVectorized, params: p, opts: opts}, nil
}
