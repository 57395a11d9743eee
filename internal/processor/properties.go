package processor

import (
	"github.com/nvandessel/risp/internal/engine"
	"github.com/nvandessel/risp/internal/network"
)

// minDelay is the smallest delay the advertised schema allows.
const minDelay = 1

// Properties describes processor capabilities to callers that encode or
// decode spike trains.
type Properties struct {
	SpikeValueFactor   *float64 `yaml:"spike_value_factor,omitempty" json:"spike_value_factor,omitempty"`
	BinaryInput        bool     `yaml:"binary_input" json:"binary_input"`
	SpikeRasterInfo    bool     `yaml:"spike_raster_info" json:"spike_raster_info"`
	Plasticity         string   `yaml:"plasticity" json:"plasticity"`
	RunTimeInclusive   *bool    `yaml:"run_time_inclusive,omitempty" json:"run_time_inclusive,omitempty"`
	IntegrationDelay   bool     `yaml:"integration_delay" json:"integration_delay"`
	ThresholdInclusive *bool    `yaml:"threshold_inclusive,omitempty" json:"threshold_inclusive,omitempty"`
}

// networkProperties builds the schema every loaded network must declare.
func networkProperties(s *settings) network.PropertyPack {
	p := s.params
	pp := network.NewPropertyPack()

	numeric := network.Double
	if s.opts.Discrete {
		numeric = network.Integer
	}

	pp.AddNodeProperty(engine.PropThreshold, p.MinThreshold, p.MaxThreshold, numeric)
	if p.LeakMode == engine.LeakConfigurable {
		pp.AddNodeProperty(engine.PropLeak, 0, 1, network.Boolean)
	}

	if len(p.Weights) > 0 {
		pp.AddEdgeProperty(engine.PropWeight, 0, float64(len(p.Weights)-1), network.Integer)
	} else {
		pp.AddEdgeProperty(engine.PropWeight, *p.MinWeight, *p.MaxWeight, numeric)
	}
	pp.AddEdgeProperty(engine.PropDelay, minDelay, float64(p.MaxDelay), network.Integer)
	return pp
}

func processorProperties(s *settings) Properties {
	if s.kind == engine.KindVectorized {
		return Properties{BinaryInput: true, Plasticity: "none"}
	}
	props := Properties{
		SpikeRasterInfo:    true,
		Plasticity:         "none",
		RunTimeInclusive:   Bool(s.opts.RunTimeInclusive),
		ThresholdInclusive: Bool(s.opts.ThresholdInclusive),
	}
	if !s.opts.InputsFromWeights {
		props.SpikeValueFactor = Float(s.opts.SpikeValueFactor)
	}
	return props
}
