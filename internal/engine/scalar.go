package engine

import (
	"fmt"

	"github.com/nvandessel/risp/internal/network"
)

type scalarNeuron struct {
	charge    float64
	threshold float64
	leak      bool
	track     bool

	lastFire  int
	fireCount int
	fireTimes []float64

	// leakedAt and firedAt hold the absolute timestep of the last leak reset
	// and the last threshold crossing; -1 when none.
	leakedAt int
	firedAt  int
	touched  bool
}

// event is a charge delta queued for a neuron position.
type event struct {
	to    int
	delta float64
}

// Scalar is the full-precision engine. Its event buffer grows on demand so
// delays and spike times are bounded only by memory.
type Scalar struct {
	opts    Options
	topo    *compiled
	weights *resolver

	neurons []scalarNeuron

	// events[t] holds deltas for t timesteps after the start of the next run.
	events [][]event

	// toFire holds neurons whose bookkeeping is deferred one timestep.
	toFire []int

	// touched is scratch for the positions hit in the current round.
	touched []int

	fireCounter  int64
	accumCounter int64
	runTime      int
}

// NewScalar compiles net into a scalar engine.
func NewScalar(net *network.Network, opts Options) (*Scalar, error) {
	if err := checkScalarOptions(opts); err != nil {
		return nil, err
	}
	topo, err := compile(net, opts)
	if err != nil {
		return nil, err
	}
	s := &Scalar{
		opts:    opts,
		topo:    topo,
		weights: newResolver(opts),
		neurons: make([]scalarNeuron, len(topo.neurons)),
	}
	for i, n := range topo.neurons {
		s.neurons[i] = scalarNeuron{
			threshold: n.threshold,
			leak:      n.leak,
			lastFire:  -1,
			leakedAt:  -1,
			firedAt:   -1,
		}
	}
	return s, nil
}

// CheckSpike reports whether ApplySpike would accept sp, without touching
// any state (including the noise generator).
func (s *Scalar) CheckSpike(sp network.Spike, normalized bool) error {
	if !s.topo.validInput(sp.ID) {
		return fmt.Errorf("%w: input_id %d is not valid", ErrRuntimeBounds, sp.ID)
	}
	if _, err := spikeTime(sp.Time); err != nil {
		return err
	}
	return s.weights.checkSpike(sp, normalized)
}

// ApplySpike queues charge for an input neuron.
func (s *Scalar) ApplySpike(sp network.Spike, normalized bool) error {
	if err := s.CheckSpike(sp, normalized); err != nil {
		return err
	}
	t, _ := spikeTime(sp.Time)

	v := s.weights.spike(sp, normalized)
	s.file(t, event{to: s.topo.inputs[sp.ID], delta: v})
	return nil
}

// file queues ev at relative timestep t, growing the buffer as needed.
func (s *Scalar) file(t int, ev event) {
	if t >= len(s.events) {
		s.events = append(s.events, make([][]event, t+1-len(s.events))...)
	}
	s.events[t] = append(s.events[t], ev)
}

// Run processes the queued events for the requested duration. Leftover
// future events are shifted so that they stay relative to the new time.
func (s *Scalar) Run(duration float64) error {
	steps, err := s.opts.steps(duration)
	if err != nil {
		return err
	}

	if s.runTime != 0 {
		s.clearTracking()
	}

	if len(s.events) < steps {
		s.events = append(s.events, make([][]event, steps-len(s.events))...)
	}

	start := s.runTime
	for t := 0; t < steps; t++ {
		s.processEvents(t, start+t)
	}
	s.runTime += steps

	n := copy(s.events, s.events[steps:])
	clear(s.events[n:])
	s.events = s.events[:n]

	// Reapply leak and the floor so charge introspection after a run is
	// consistent with the clamp policy.
	for i := range s.neurons {
		nr := &s.neurons[i]
		if nr.leak {
			nr.charge = 0
		}
		if nr.charge < s.opts.MinPotential {
			nr.charge = s.opts.MinPotential
		}
	}
	return nil
}

// processEvents handles relative timestep t, which is absolute timestep abs.
func (s *Scalar) processEvents(t, abs int) {
	es := s.events[t]
	s.events[t] = nil

	for _, i := range s.toFire {
		s.fire(i, t)
	}
	s.fireCounter += int64(len(s.toFire))
	s.toFire = s.toFire[:0]

	// Zero-delay synapses deliver within the same timestep, so rounds repeat
	// until nothing new is filed for t. A neuron fires at most once per
	// timestep, which bounds the number of rounds.
	for len(es) > 0 {
		s.accumulate(es, abs)
		es = s.evaluate(t, abs)
	}
}

// accumulate applies leak, all deltas and the floor for one round. No
// threshold is looked at until every delta of the round has landed.
func (s *Scalar) accumulate(es []event, abs int) {
	touched := s.touched[:0]
	for _, ev := range es {
		nr := &s.neurons[ev.to]
		if nr.leakedAt != abs {
			nr.leakedAt = abs
			if nr.leak {
				nr.charge = 0
			}
		}
		if !nr.touched {
			nr.touched = true
			touched = append(touched, ev.to)
		}
	}

	for _, ev := range es {
		s.neurons[ev.to].charge += ev.delta
	}
	s.accumCounter += int64(len(es))

	for _, i := range touched {
		nr := &s.neurons[i]
		if nr.charge < s.opts.MinPotential {
			nr.charge = s.opts.MinPotential
		}
	}
	s.touched = touched
}

// evaluate fires every touched neuron at or above threshold and returns the
// zero-delay deltas produced for the current timestep.
func (s *Scalar) evaluate(t, abs int) []event {
	var same []event
	for _, i := range s.touched {
		nr := &s.neurons[i]
		nr.touched = false
		if nr.firedAt == abs || nr.charge < nr.threshold {
			continue
		}
		nr.firedAt = abs

		for _, syn := range s.topo.synapses[i] {
			ev := event{to: syn.to, delta: s.weights.synapse(syn.weight)}
			if syn.delay == 0 {
				same = append(same, ev)
				continue
			}
			s.file(t+syn.delay, ev)
		}

		if s.opts.FireLikeRavens {
			s.toFire = append(s.toFire, i)
		} else {
			s.fireCounter++
			s.fire(i, t)
		}
	}
	return same
}

func (s *Scalar) fire(i, t int) {
	nr := &s.neurons[i]
	if nr.track {
		nr.fireTimes = append(nr.fireTimes, float64(t))
	}
	nr.lastFire = t
	nr.fireCount++
	nr.charge = 0
}

func (s *Scalar) clearTracking() {
	for i := range s.neurons {
		nr := &s.neurons[i]
		nr.lastFire = -1
		nr.fireCount = 0
		nr.fireTimes = nil
	}
}

// ClearActivity resets charge, queued events, history and time.
func (s *Scalar) ClearActivity() {
	for i := range s.neurons {
		nr := &s.neurons[i]
		nr.charge = 0
		nr.lastFire = -1
		nr.fireCount = 0
		nr.fireTimes = nil
		nr.leakedAt = -1
		nr.firedAt = -1
		nr.touched = false
	}
	s.events = nil
	s.toFire = s.toFire[:0]
	s.runTime = 0
}

// Time returns the number of timesteps processed.
func (s *Scalar) Time() float64 { return float64(s.runTime) }

// TrackOutputEvents toggles fire-time history for an output neuron.
func (s *Scalar) TrackOutputEvents(outputID int, track bool) bool {
	if !s.topo.validOutput(outputID) {
		return false
	}
	s.neurons[s.topo.outputs[outputID]].track = track
	return true
}

// TrackNeuronEvents toggles fire-time history for any neuron by node id.
func (s *Scalar) TrackNeuronEvents(nodeID uint32, track bool) bool {
	pos, ok := s.topo.index[nodeID]
	if !ok {
		return false
	}
	s.neurons[pos].track = track
	return true
}

func (s *Scalar) output(outputID int) (*scalarNeuron, error) {
	if !s.topo.validOutput(outputID) {
		return nil, fmt.Errorf("%w: output_id %d is not valid", ErrRuntimeBounds, outputID)
	}
	return &s.neurons[s.topo.outputs[outputID]], nil
}

// OutputLastFire returns the last fire time of an output, -1 if it has not
// fired during the current run.
func (s *Scalar) OutputLastFire(outputID int) (float64, error) {
	nr, err := s.output(outputID)
	if err != nil {
		return 0, err
	}
	return float64(nr.lastFire), nil
}

// OutputLastFires returns OutputLastFire for every output.
func (s *Scalar) OutputLastFires() []float64 {
	out := make([]float64, len(s.topo.outputs))
	for i, pos := range s.topo.outputs {
		out[i] = float64(s.neurons[pos].lastFire)
	}
	return out
}

// OutputCount returns how often an output fired during the current run.
func (s *Scalar) OutputCount(outputID int) (int, error) {
	nr, err := s.output(outputID)
	if err != nil {
		return 0, err
	}
	return nr.fireCount, nil
}

// OutputCounts returns OutputCount for every output.
func (s *Scalar) OutputCounts() []int {
	out := make([]int, len(s.topo.outputs))
	for i, pos := range s.topo.outputs {
		out[i] = s.neurons[pos].fireCount
	}
	return out
}

// OutputVector returns the tracked fire times of an output. It is empty
// unless tracking was enabled.
func (s *Scalar) OutputVector(outputID int) ([]float64, error) {
	nr, err := s.output(outputID)
	if err != nil {
		return nil, err
	}
	return append([]float64{}, nr.fireTimes...), nil
}

// OutputVectors returns OutputVector for every output.
func (s *Scalar) OutputVectors() [][]float64 {
	out := make([][]float64, len(s.topo.outputs))
	for i, pos := range s.topo.outputs {
		out[i] = append([]float64{}, s.neurons[pos].fireTimes...)
	}
	return out
}

// TotalNeuronCounts returns the fires since the last call and resets it.
func (s *Scalar) TotalNeuronCounts() int64 {
	n := s.fireCounter
	s.fireCounter = 0
	return n
}

// TotalNeuronAccumulates returns the deltas applied since the last call and
// resets it.
func (s *Scalar) TotalNeuronAccumulates() int64 {
	n := s.accumCounter
	s.accumCounter = 0
	return n
}

func (s *Scalar) NeuronCounts() []int {
	out := make([]int, len(s.neurons))
	for i := range s.neurons {
		out[i] = s.neurons[i].fireCount
	}
	return out
}

func (s *Scalar) NeuronLastFires() []float64 {
	out := make([]float64, len(s.neurons))
	for i := range s.neurons {
		out[i] = float64(s.neurons[i].lastFire)
	}
	return out
}

func (s *Scalar) NeuronVectors() [][]float64 {
	out := make([][]float64, len(s.neurons))
	for i := range s.neurons {
		out[i] = append([]float64{}, s.neurons[i].fireTimes...)
	}
	return out
}

func (s *Scalar) NeuronCharges() []float64 {
	out := make([]float64, len(s.neurons))
	for i := range s.neurons {
		out[i] = s.neurons[i].charge
	}
	return out
}

// SynapseWeights lists every synapse with its stored weight (a table index
// when a weight table is configured).
func (s *Scalar) SynapseWeights() (pres, posts []uint32, vals []float64) {
	pres, posts, vals = []uint32{}, []uint32{}, []float64{}
	for from, syns := range s.topo.synapses {
		for _, syn := range syns {
			pres = append(pres, s.topo.neurons[from].id)
			posts = append(posts, s.topo.neurons[syn.to].id)
			vals = append(vals, syn.weight)
		}
	}
	return pres, posts, vals
}

var _ Engine = (*Scalar)(nil)
