package simulation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/risp/internal/engine"
	"github.com/nvandessel/risp/internal/network"
	"github.com/nvandessel/risp/internal/processor"
)

// Experiment defines a complete simulation run.
type Experiment struct {
	Name string `json:"name" yaml:"name"`

	// Params, when set, overrides the caller's processor parameters.
	Params *processor.Params `json:"params,omitempty" yaml:"params,omitempty"`

	Network NetworkSpec `json:"network" yaml:"network"`
	Steps   []Step      `json:"steps" yaml:"steps"`
}

// NetworkSpec is a topology described by property values rather than by
// value vectors. It is built against whatever schema the processor
// advertises.
type NetworkSpec struct {
	Nodes   []NodeSpec `json:"nodes" yaml:"nodes"`
	Edges   []EdgeSpec `json:"edges" yaml:"edges"`
	Inputs  []uint32   `json:"inputs" yaml:"inputs"`
	Outputs []uint32   `json:"outputs" yaml:"outputs"`
}

// NodeSpec defines one neuron. Leak is only meaningful when the processor
// declares a per-node Leak property.
type NodeSpec struct {
	ID        uint32  `json:"id" yaml:"id"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	Leak      *bool   `json:"leak,omitempty" yaml:"leak,omitempty"`
}

// EdgeSpec defines one synapse. With a weight table, Weight is a table index.
type EdgeSpec struct {
	From   uint32  `json:"from" yaml:"from"`
	To     uint32  `json:"to" yaml:"to"`
	Weight float64 `json:"weight" yaml:"weight"`
	Delay  float64 `json:"delay" yaml:"delay"`
}

// Step is one unit of an experiment, executed in field order: clear,
// tracking, spikes, run.
type Step struct {
	// Label is an optional human-readable tag for debugging output.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	Clear        bool            `json:"clear,omitempty" yaml:"clear,omitempty"`
	TrackOutputs []int           `json:"track_outputs,omitempty" yaml:"track_outputs,omitempty"`
	TrackNeurons []uint32        `json:"track_neurons,omitempty" yaml:"track_neurons,omitempty"`
	Spikes       []network.Spike `json:"spikes,omitempty" yaml:"spikes,omitempty"`
	RawSpikes    bool            `json:"raw_spikes,omitempty" yaml:"raw_spikes,omitempty"`
	Run          float64         `json:"run" yaml:"run"`
}

// ParamsOr returns the experiment's parameters, or fallback when it has none.
func (e *Experiment) ParamsOr(fallback processor.Params) processor.Params {
	if e.Params != nil {
		return *e.Params
	}
	return fallback
}

// Validate checks the parts of an experiment that do not depend on the
// processor.
func (e *Experiment) Validate() error {
	if len(e.Network.Nodes) == 0 {
		return errors.New("experiment has no nodes")
	}
	if len(e.Steps) == 0 {
		return errors.New("experiment has no steps")
	}
	for i, s := range e.Steps {
		if s.Run < 0 {
			return fmt.Errorf("step %d: negative run duration %g", i, s.Run)
		}
	}
	return nil
}

// Build creates the network against pp, the schema of the processor that
// will load it.
func (ns NetworkSpec) Build(pp network.PropertyPack) (*network.Network, error) {
	net := network.New(pp)
	hasLeak := net.IsNodeProperty(engine.PropLeak)

	for _, spec := range ns.Nodes {
		n, err := net.AddNode(spec.ID)
		if err != nil {
			return nil, err
		}
		if err := net.SetNodeValue(n, engine.PropThreshold, spec.Threshold); err != nil {
			return nil, fmt.Errorf("node %d: %w", spec.ID, err)
		}
		if spec.Leak == nil {
			continue
		}
		if !hasLeak {
			return nil, fmt.Errorf("node %d: leak set but the processor has no per-node Leak property (use leak_mode: configurable)", spec.ID)
		}
		leak := 0.0
		if *spec.Leak {
			leak = 1
		}
		if err := net.SetNodeValue(n, engine.PropLeak, leak); err != nil {
			return nil, fmt.Errorf("node %d: %w", spec.ID, err)
		}
	}

	for _, id := range ns.Inputs {
		if _, err := net.AddInput(id); err != nil {
			return nil, fmt.Errorf("input %d: %w", id, err)
		}
	}
	for _, id := range ns.Outputs {
		if _, err := net.AddOutput(id); err != nil {
			return nil, fmt.Errorf("output %d: %w", id, err)
		}
	}

	for _, spec := range ns.Edges {
		e, err := net.AddEdge(spec.From, spec.To)
		if err != nil {
			return nil, err
		}
		if err := net.SetEdgeValue(e, engine.PropWeight, spec.Weight); err != nil {
			return nil, fmt.Errorf("edge %d->%d: %w", spec.From, spec.To, err)
		}
		if err := net.SetEdgeValue(e, engine.PropDelay, spec.Delay); err != nil {
			return nil, fmt.Errorf("edge %d->%d: %w", spec.From, spec.To, err)
		}
	}
	return net, nil
}

// ParseExperiment decodes a YAML experiment. Unknown top-level and step
// fields are rejected; unknown processor parameters are left for
// processor.New to report.
func ParseExperiment(data []byte) (*Experiment, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var exp Experiment
	if err := dec.Decode(&exp); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty experiment")
		}
		return nil, fmt.Errorf("parsing experiment: %w", err)
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}
	return &exp, nil
}

// LoadExperiment reads and parses an experiment file.
func LoadExperiment(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment: %w", err)
	}
	exp, err := ParseExperiment(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return exp, nil
}
