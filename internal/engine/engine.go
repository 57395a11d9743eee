// Package engine implements event-driven spiking-network simulation.
//
// A topology is compiled once into dense arrays indexed by neuron position
// (the network's nodes sorted by id). Two backing stores implement the same
// Engine interface: Scalar keeps full-precision charge, a growable event
// buffer and per-neuron fire history; Vector keeps int8 state in a fixed
// ring buffer with bit-packed flags and lane-aligned arrays.
//
// Within one timestep every queued delta is accumulated before any
// threshold is evaluated, so results never depend on neuron iteration order.
//
// Engines are not safe for concurrent use. Distinct engines share no state.
package engine

import (
	"fmt"

	"github.com/nvandessel/risp/internal/network"
)

// Engine is the simulation surface shared by both backing stores. Position
// based slices (NeuronCounts, NeuronCharges, ...) follow ascending node id.
type Engine interface {
	// ApplySpike queues a spike for Time timesteps after the current time.
	ApplySpike(s network.Spike, normalized bool) error

	// CheckSpike validates a spike exactly as ApplySpike would, with no
	// side effects.
	CheckSpike(s network.Spike, normalized bool) error

	// Run advances the clock, processing queued events.
	Run(duration float64) error

	// Time returns the number of timesteps processed since the last clear.
	Time() float64

	TrackOutputEvents(outputID int, track bool) bool
	TrackNeuronEvents(nodeID uint32, track bool) bool

	OutputLastFire(outputID int) (float64, error)
	OutputLastFires() []float64
	OutputCount(outputID int) (int, error)
	OutputCounts() []int
	OutputVector(outputID int) ([]float64, error)
	OutputVectors() [][]float64

	// TotalNeuronCounts and TotalNeuronAccumulates return running totals and
	// reset them. Engines that do not keep totals return -1.
	TotalNeuronCounts() int64
	TotalNeuronAccumulates() int64

	NeuronCounts() []int
	NeuronLastFires() []float64
	NeuronVectors() [][]float64
	NeuronCharges() []float64

	// SynapseWeights returns parallel slices of source id, target id and
	// stored weight for every synapse.
	SynapseWeights() (pres, posts []uint32, vals []float64)

	// ClearActivity drops all charge, queued events and firing history while
	// keeping the topology loaded.
	ClearActivity()
}

// CheckOptions reports options the engine of the given kind cannot run
// with, without compiling a topology.
func CheckOptions(kind Kind, opts Options) error {
	switch kind {
	case KindScalar, "":
		return checkScalarOptions(opts)
	case KindVectorized:
		return checkVectorOptions(opts)
	}
	return fmt.Errorf("%w: unknown engine %q (valid: scalar, vectorized)", ErrConfiguration, kind)
}

// New compiles net and builds the engine of the requested kind.
func New(kind Kind, net *network.Network, opts Options) (Engine, error) {
	switch kind {
	case KindScalar, "":
		return NewScalar(net, opts)
	case KindVectorized:
		return NewVector(net, opts)
	}
	return nil, fmt.Errorf("%w: unknown engine %q (valid: scalar, vectorized)", ErrConfiguration, kind)
}
