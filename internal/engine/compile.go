package engine

import (
	"fmt"
	"math"

	"github.com/nvandessel/risp/internal/network"
)

// Required property names.
const (
	PropThreshold = "Threshold"
	PropLeak      = "Leak"
	PropWeight    = "Weight"
	PropDelay     = "Delay"
)

// exclusiveEpsilon nudges continuous thresholds when firing requires
// strictly exceeding them.
const exclusiveEpsilon = 0.0000001

type compiledNeuron struct {
	id        uint32
	threshold float64
	leak      bool
}

type compiledSynapse struct {
	to     int
	weight float64
	delay  int
}

// compiled is the dense, simulation-ready form of a topology. Neurons are
// stored by position in ascending id order; synapses are index lists keyed
// by source position.
type compiled struct {
	neurons  []compiledNeuron
	index    map[uint32]int
	synapses [][]compiledSynapse
	inputs   []int // input id -> neuron position
	outputs  []int // output id -> neuron position
}

// missingProperties lists required properties the network does not declare.
func missingProperties(net *network.Network, leak LeakMode) []string {
	var missing []string
	if !net.IsNodeProperty(PropThreshold) {
		missing = append(missing, "node "+PropThreshold)
	}
	if leak == LeakConfigurable && !net.IsNodeProperty(PropLeak) {
		missing = append(missing, "node "+PropLeak)
	}
	if !net.IsEdgeProperty(PropWeight) {
		missing = append(missing, "edge "+PropWeight)
	}
	if !net.IsEdgeProperty(PropDelay) {
		missing = append(missing, "edge "+PropDelay)
	}
	return missing
}

// compile converts net into its dense representation.
func compile(net *network.Network, opts Options) (*compiled, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: nil network", ErrTopologyMismatch)
	}
	if missing := missingProperties(net, opts.Leak); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %v property", ErrTopologyMismatch, missing)
	}

	sorted := net.SortedNodes()
	c := &compiled{
		neurons:  make([]compiledNeuron, len(sorted)),
		index:    make(map[uint32]int, len(sorted)),
		synapses: make([][]compiledSynapse, len(sorted)),
		inputs:   make([]int, len(net.Inputs())),
		outputs:  make([]int, len(net.Outputs())),
	}

	for pos, node := range sorted {
		threshold, err := net.NodeValue(node, PropThreshold)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTopologyMismatch, err)
		}
		if opts.Discrete && !isInteger(threshold) {
			return nil, fmt.Errorf("%w: node %d threshold %g is not an integer", ErrTopologyMismatch, node.ID, threshold)
		}
		if !opts.ThresholdInclusive {
			if opts.Discrete {
				threshold++
			} else {
				threshold += exclusiveEpsilon
			}
		}

		leak := opts.Leak == LeakAll
		if opts.Leak == LeakConfigurable {
			v, err := net.NodeValue(node, PropLeak)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrTopologyMismatch, err)
			}
			leak = v != 0
		}

		c.neurons[pos] = compiledNeuron{id: node.ID, threshold: threshold, leak: leak}
		c.index[node.ID] = pos
	}

	for _, e := range net.Edges() {
		from, ok := c.index[e.From]
		if !ok {
			return nil, fmt.Errorf("%w: edge %d->%d: node %d does not exist", ErrTopologyMismatch, e.From, e.To, e.From)
		}
		to, ok := c.index[e.To]
		if !ok {
			return nil, fmt.Errorf("%w: edge %d->%d: node %d does not exist", ErrTopologyMismatch, e.From, e.To, e.To)
		}
		weight, err := net.EdgeValue(e, PropWeight)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTopologyMismatch, err)
		}
		delay, err := net.EdgeValue(e, PropDelay)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTopologyMismatch, err)
		}

		if delay < 0 || !isInteger(delay) {
			return nil, fmt.Errorf("%w: edge %d->%d delay %g must be a non-negative integer", ErrTopologyMismatch, e.From, e.To, delay)
		}
		if opts.MaxDelay > 0 && int(delay) > opts.MaxDelay {
			return nil, fmt.Errorf("%w: edge %d->%d delay %g exceeds max_delay %d", ErrTopologyMismatch, e.From, e.To, delay, opts.MaxDelay)
		}
		if len(opts.Weights) > 0 {
			idx := int(math.Round(weight))
			if idx < 0 || idx >= len(opts.Weights) {
				return nil, fmt.Errorf("%w: edge %d->%d weight index %g outside table of %d", ErrTopologyMismatch, e.From, e.To, weight, len(opts.Weights))
			}
		} else if opts.Discrete && !isInteger(weight) {
			return nil, fmt.Errorf("%w: edge %d->%d weight %g is not an integer", ErrTopologyMismatch, e.From, e.To, weight)
		}

		c.synapses[from] = append(c.synapses[from], compiledSynapse{to: to, weight: weight, delay: int(delay)})
	}

	for i, id := range net.Inputs() {
		pos, ok := c.index[id]
		if !ok {
			return nil, fmt.Errorf("%w: input %d: node %d does not exist", ErrTopologyMismatch, i, id)
		}
		c.inputs[i] = pos
	}
	for i, id := range net.Outputs() {
		pos, ok := c.index[id]
		if !ok {
			return nil, fmt.Errorf("%w: output %d: node %d does not exist", ErrTopologyMismatch, i, id)
		}
		c.outputs[i] = pos
	}

	return c, nil
}

// maxID returns the largest node id, or -1 for an empty topology.
func (c *compiled) maxID() int {
	if len(c.neurons) == 0 {
		return -1
	}
	return int(c.neurons[len(c.neurons)-1].id)
}

func (c *compiled) validInput(id int) bool {
	return id >= 0 && id < len(c.inputs)
}

func (c *compiled) validOutput(id int) bool {
	return id >= 0 && id < len(c.outputs)
}

func isInteger(v float64) bool {
	return v == math.Trunc(v) && !math.IsInf(v, 0)
}
