package processor

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/risp/internal/engine"
	"github.com/nvandessel/risp/internal/logging"
	"github.com/nvandessel/risp/internal/network"
)

func TestNew_RejectsParams(t *testing.T) {
	tests := []struct {
		name   string
		base   func() Params
		mutate func(*Params)
	}{
		{"min threshold above max", scalarParams, func(p *Params) { p.MinThreshold = 2 }},
		{"min weight above max", scalarParams, func(p *Params) { p.MinWeight = Float(2) }},
		{"positive min potential", scalarParams, func(p *Params) { p.MinPotential = 0.5 }},
		{"negative max delay", scalarParams, func(p *Params) { p.MaxDelay = -1 }},
		{"bad leak mode", scalarParams, func(p *Params) { p.LeakMode = "sometimes" }},
		{"missing max weight", scalarParams, func(p *Params) { p.MaxWeight = nil }},
		{"inputs_from_weights without weights", scalarParams, func(p *Params) { p.InputsFromWeights = Bool(true) }},
		{"weights with min weight", scalarParams, func(p *Params) {
			p.Weights = []float64{1, 2}
			p.InputsFromWeights = Bool(true)
		}},
		{"weights without inputs_from_weights", scalarParams, func(p *Params) {
			p.MinWeight, p.MaxWeight = nil, nil
			p.Weights = []float64{1, 2}
		}},
		{"unsorted weights", scalarParams, func(p *Params) {
			p.MinWeight, p.MaxWeight = nil, nil
			p.Weights = []float64{2, 1}
			p.InputsFromWeights = Bool(true)
		}},
		{"spike factor with inputs_from_weights", scalarParams, func(p *Params) {
			p.MinWeight, p.MaxWeight = nil, nil
			p.Weights = []float64{1, 2}
			p.InputsFromWeights = Bool(true)
			p.SpikeValueFactor = Float(1)
		}},
		{"no spike factor without inputs_from_weights", scalarParams, func(p *Params) {
			p.MinWeight, p.MaxWeight = nil, nil
			p.Weights = []float64{1, 2}
			p.InputsFromWeights = Bool(false)
		}},
		{"stds without weights", scalarParams, func(p *Params) { p.Stds = []float64{0.1} }},
		{"stds of different size", scalarParams, func(p *Params) {
			p.MinWeight, p.MaxWeight = nil, nil
			p.Weights = []float64{1, 2}
			p.Stds = []float64{0.1}
			p.InputsFromWeights = Bool(true)
		}},
		{"stds with noisy stddev", scalarParams, func(p *Params) {
			p.MinWeight, p.MaxWeight = nil, nil
			p.Weights = []float64{1, 2}
			p.Stds = []float64{0.1, 0.1}
			p.InputsFromWeights = Bool(true)
			p.NoisyStddev = 0.2
		}},
		{"discrete with fractional weight bound", scalarParams, func(p *Params) {
			p.Discrete = true
			p.MaxWeight = Float(1.5)
		}},
		{"discrete with fractional threshold", scalarParams, func(p *Params) {
			p.Discrete = true
			p.MaxThreshold = 0.5
		}},
		{"discrete with noise", scalarParams, func(p *Params) {
			p.Discrete = true
			p.NoisyStddev = 1
		}},
		{"unknown engine", scalarParams, func(p *Params) { p.Engine = "fpga" }},
		{"vectorized without window", vectorParams, func(p *Params) { p.TrackedTimesteps = 0 }},
		{"vectorized window too short", vectorParams, func(p *Params) { p.TrackedTimesteps = 4 }},
		{"vectorized noise", vectorParams, func(p *Params) { p.NoisyStddev = 1 }},
		{"vectorized deferred fire", vectorParams, func(p *Params) { p.FireLikeRavens = true }},
		{"vectorized fractional threshold", vectorParams, func(p *Params) { p.MaxThreshold = 6.5 }},
		{"vectorized weight outside int8", vectorParams, func(p *Params) { p.MaxWeight = Float(300) }},
		{"vectorized lanes", vectorParams, func(p *Params) { p.Lanes = 24 }},
		{"vectorized weight table", vectorParams, func(p *Params) { p.Weights = []float64{1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := tt.base()
			tt.mutate(&params)
			p, err := New(params)
			if !errors.Is(err, engine.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
			if p != nil {
				t.Error("New returned a processor alongside an error")
			}
		})
	}
}

func TestNew_RejectsLegacyParams(t *testing.T) {
	tests := []struct {
		key  string
		hint string
	}{
		{"input_scaling_value", "spike_value_factor"},
		{"non_negative_charge", "min_potential"},
		{"specific_weights", "weights"},
		{"noisy_weights", "stds"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			doc := `
min_weight: -1
max_weight: 1
min_threshold: 0
max_threshold: 1
min_potential: 0
max_delay: 5
discrete: false
` + tt.key + `: 1
`
			var params Params
			if err := yaml.Unmarshal([]byte(doc), &params); err != nil {
				t.Fatalf("yaml.Unmarshal: %v", err)
			}
			_, err := New(params)
			if !errors.Is(err, engine.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.key) || !strings.Contains(err.Error(), tt.hint) {
				t.Errorf("error %q should name %s and suggest %s", err, tt.key, tt.hint)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	p := mustProcessor(t, scalarParams())
	got := p.Params()

	if got.LeakMode != engine.LeakNone {
		t.Errorf("leak_mode = %q, want none", got.LeakMode)
	}
	if got.ThresholdInclusive == nil || !*got.ThresholdInclusive {
		t.Error("threshold_inclusive should default to true")
	}
	if got.RunTimeInclusive {
		t.Error("run_time_inclusive should default to false")
	}
	if got.SpikeValueFactor == nil || *got.SpikeValueFactor != 1 {
		t.Errorf("spike_value_factor = %v, want max_weight (1)", got.SpikeValueFactor)
	}
	if got.Engine != engine.KindScalar {
		t.Errorf("engine = %q, want scalar", got.Engine)
	}
}

func TestNew_WarnsWhenSpikeFactorDefaultIsLow(t *testing.T) {
	var buf bytes.Buffer
	params := scalarParams()
	params.MaxThreshold = 4

	mustProcessor(t, params, WithLogger(logging.NewLogger("info", &buf)))
	if !strings.Contains(buf.String(), "spike_value_factor") {
		t.Errorf("expected a spike_value_factor warning, got %q", buf.String())
	}

	buf.Reset()
	params.SpikeValueFactor = Float(4)
	mustProcessor(t, params, WithLogger(logging.NewLogger("info", &buf)))
	if buf.Len() != 0 {
		t.Errorf("unexpected log output with an explicit factor: %q", buf.String())
	}
}

func TestParams_YAMLRoundTrip(t *testing.T) {
	p := mustProcessor(t, vectorParams())
	data, err := yaml.Marshal(p.Params())
	if err != nil {
		t.Fatalf("yaml.Marshal: %v", err)
	}

	var decoded Params
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	q := mustProcessor(t, decoded)
	if q.Name() != "vrisp" {
		t.Errorf("name = %q, want vrisp", q.Name())
	}
	if !q.NetworkProperties().Equal(p.NetworkProperties()) {
		t.Errorf("schemas differ: %v", p.NetworkProperties().Diff(q.NetworkProperties()))
	}
}

func TestNetworkProperties(t *testing.T) {
	t.Run("discrete configurable leak", func(t *testing.T) {
		params := scalarParams()
		params.Discrete = true
		params.LeakMode = engine.LeakConfigurable
		pp := mustProcessor(t, params).NetworkProperties()

		want := network.NewPropertyPack()
		want.AddNodeProperty(engine.PropThreshold, 0, 1, network.Integer)
		want.AddNodeProperty(engine.PropLeak, 0, 1, network.Boolean)
		want.AddEdgeProperty(engine.PropWeight, -1, 1, network.Integer)
		want.AddEdgeProperty(engine.PropDelay, 1, 5, network.Integer)
		if !pp.Equal(want) {
			t.Errorf("schema diff: %v", want.Diff(pp))
		}
	})

	t.Run("weight table", func(t *testing.T) {
		params := scalarParams()
		params.MinWeight, params.MaxWeight = nil, nil
		params.Weights = []float64{0.1, 0.5, 0.9}
		params.InputsFromWeights = Bool(true)
		pp := mustProcessor(t, params).NetworkProperties()

		w := pp.Edges[engine.PropWeight]
		if w.Min != 0 || w.Max != 2 || w.Type != network.Integer {
			t.Errorf("weight property = %s, want [0,2] integer", w)
		}
		if _, ok := pp.Nodes[engine.PropLeak]; ok {
			t.Error("Leak declared without configurable leak mode")
		}
	})
}

func TestProcessorProperties(t *testing.T) {
	scalar := mustProcessor(t, scalarParams()).ProcessorProperties()
	if !scalar.SpikeRasterInfo || scalar.BinaryInput {
		t.Errorf("scalar properties = %+v", scalar)
	}
	if scalar.SpikeValueFactor == nil || *scalar.SpikeValueFactor != 1 {
		t.Errorf("scalar spike_value_factor = %v, want 1", scalar.SpikeValueFactor)
	}
	if scalar.ThresholdInclusive == nil || !*scalar.ThresholdInclusive {
		t.Error("scalar threshold_inclusive should be reported true")
	}

	vector := mustProcessor(t, vectorParams()).ProcessorProperties()
	if vector.SpikeRasterInfo || !vector.BinaryInput || vector.SpikeValueFactor != nil {
		t.Errorf("vectorized properties = %+v", vector)
	}
	if vector.Plasticity != "none" {
		t.Errorf("plasticity = %q, want none", vector.Plasticity)
	}
}
