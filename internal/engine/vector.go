package engine

import (
	"fmt"
	"math"

	"github.com/nvandessel/risp/internal/network"
)

// Vector is the fixed-width engine. All per-neuron arrays are indexed by node
// id and padded to a multiple of the lane width; charge lives in an int8
// ring buffer of TrackedTimesteps rows. The per-timestep loop allocates
// nothing and is split into a load/compare phase, a store phase and a
// scatter phase so it can be executed lane-parallel without changing results.
//
// Charge arithmetic is two's-complement int8, which keeps accumulation
// independent of the order in which deltas land.
type Vector struct {
	opts   Options
	lanes  int
	count  int // max node id + 1
	alloc  int // count rounded up to lanes
	window int

	charge    []int8 // window rows of alloc columns
	threshold []int8
	leak      bitset
	fired     bitset
	isOutput  bitset

	synTo     [][]uint16
	synDelay  [][]uint8
	synWeight [][]int8

	inputs  []int    // input id -> node id
	outputs []int    // output id -> node id
	order   []uint32 // node ids ascending

	outCount []int32
	outLast  []int32

	minPotential int8
	now          int
}

// NewVector compiles net into a vectorized engine. Every value must be an
// integer that fits the engine's fixed widths.
func NewVector(net *network.Network, opts Options) (*Vector, error) {
	if err := checkVectorOptions(opts); err != nil {
		return nil, err
	}
	topo, err := compile(net, opts)
	if err != nil {
		return nil, err
	}

	lanes := opts.lanes()
	count := topo.maxID() + 1
	if count > math.MaxUint16+1 {
		return nil, fmt.Errorf("%w: node id %d exceeds %d", ErrTopologyMismatch, count-1, math.MaxUint16)
	}
	alloc := (count + lanes - 1) / lanes * lanes

	v := &Vector{
		opts:         opts,
		lanes:        lanes,
		count:        count,
		alloc:        alloc,
		window:       opts.TrackedTimesteps,
		charge:       make([]int8, opts.TrackedTimesteps*alloc),
		threshold:    make([]int8, alloc),
		leak:         newBitset(alloc),
		fired:        newBitset(alloc),
		isOutput:     newBitset(alloc),
		synTo:        make([][]uint16, alloc),
		synDelay:     make([][]uint8, alloc),
		synWeight:    make([][]int8, alloc),
		inputs:       make([]int, len(topo.inputs)),
		outputs:      make([]int, len(topo.outputs)),
		order:        make([]uint32, len(topo.neurons)),
		outCount:     make([]int32, alloc),
		outLast:      make([]int32, alloc),
		minPotential: int8(opts.MinPotential),
	}

	// Padding and id gaps never fire.
	for i := range v.threshold {
		v.threshold[i] = math.MaxInt8
	}
	for i := range v.outLast {
		v.outLast[i] = -1
	}

	for pos, n := range topo.neurons {
		if n.threshold < math.MinInt8 || n.threshold > math.MaxInt8 {
			return nil, fmt.Errorf("%w: node %d threshold %g does not fit int8", ErrTopologyMismatch, n.id, n.threshold)
		}
		id := int(n.id)
		v.order[pos] = n.id
		v.threshold[id] = int8(n.threshold)
		if n.leak {
			v.leak.set(id)
		}

		syns := topo.synapses[pos]
		for _, syn := range syns {
			if syn.delay < 1 || syn.delay >= v.window {
				return nil, fmt.Errorf("%w: node %d synapse delay %d must be in [1,%d)", ErrTopologyMismatch, n.id, syn.delay, v.window)
			}
			if syn.weight < math.MinInt8 || syn.weight > math.MaxInt8 {
				return nil, fmt.Errorf("%w: node %d synapse weight %g does not fit int8", ErrTopologyMismatch, n.id, syn.weight)
			}
			v.synTo[id] = append(v.synTo[id], uint16(topo.neurons[syn.to].id))
			v.synDelay[id] = append(v.synDelay[id], uint8(syn.delay))
			v.synWeight[id] = append(v.synWeight[id], int8(syn.weight))
		}
	}
	for i, pos := range topo.inputs {
		v.inputs[i] = int(topo.neurons[pos].id)
	}
	for i, pos := range topo.outputs {
		id := int(topo.neurons[pos].id)
		v.outputs[i] = id
		v.isOutput.set(id)
	}

	return v, nil
}

func checkVectorOptions(opts Options) error {
	if _, err := ParseLeakMode(string(opts.Leak)); err != nil {
		return err
	}
	if !opts.Discrete {
		return fmt.Errorf("%w: vectorized engine requires discrete values", ErrConfiguration)
	}
	if opts.TrackedTimesteps < 2 {
		return fmt.Errorf("%w: tracked_timesteps must be >= 2", ErrConfiguration)
	}
	if opts.MaxDelay >= opts.TrackedTimesteps {
		return fmt.Errorf("%w: max_delay (%d) must be < tracked_timesteps (%d)", ErrConfiguration, opts.MaxDelay, opts.TrackedTimesteps)
	}
	if opts.MaxDelay > math.MaxUint8 {
		return fmt.Errorf("%w: max_delay (%d) does not fit uint8", ErrConfiguration, opts.MaxDelay)
	}
	switch opts.lanes() {
	case 8, 16, 32, maxLanes:
	default:
		return fmt.Errorf("%w: lanes (%d) must be 8, 16, 32 or %d", ErrConfiguration, opts.Lanes, maxLanes)
	}
	if opts.MinPotential < math.MinInt8 || opts.MinPotential > 0 || !isInteger(opts.MinPotential) {
		return fmt.Errorf("%w: min_potential (%g) must be an integer in [%d,0]", ErrConfiguration, opts.MinPotential, math.MinInt8)
	}
	if len(opts.Weights) > 0 || opts.InputsFromWeights {
		return fmt.Errorf("%w: vectorized engine does not support a weight table", ErrConfiguration)
	}
	if opts.NoisyStddev != 0 {
		return fmt.Errorf("%w: vectorized engine does not support noise", ErrConfiguration)
	}
	if opts.FireLikeRavens {
		return fmt.Errorf("%w: vectorized engine does not support fire_like_ravens", ErrConfiguration)
	}
	return nil
}

// row returns the ring-buffer offset of the slot steps after now.
func (v *Vector) row(steps int) int {
	return (v.now + steps) % v.window * v.alloc
}

// spikeDelta validates s and returns its slot offset and charge.
func (v *Vector) spikeDelta(s network.Spike, normalized bool) (int, int8, error) {
	if s.ID < 0 || s.ID >= len(v.inputs) {
		return 0, 0, fmt.Errorf("%w: input_id %d is not valid", ErrRuntimeBounds, s.ID)
	}
	t, err := spikeTime(s.Time)
	if err != nil {
		return 0, 0, err
	}
	if t >= v.window {
		return 0, 0, fmt.Errorf("%w: spike time (%d) must be < tracked_timesteps (%d)", ErrRuntimeBounds, t, v.window)
	}

	var delta float64
	if normalized {
		if math.IsNaN(s.Value) || s.Value < -1 || s.Value > 1 {
			return 0, 0, fmt.Errorf("%w: spike value (%g) must be in [-1,1]", ErrRuntimeBounds, s.Value)
		}
		delta = math.Floor(s.Value * v.opts.SpikeValueFactor)
	} else {
		if !isInteger(s.Value) {
			return 0, 0, fmt.Errorf("%w: spike value (%g) must be an integer", ErrRuntimeBounds, s.Value)
		}
		delta = s.Value
	}
	if delta < math.MinInt8 || delta > math.MaxInt8 {
		return 0, 0, fmt.Errorf("%w: spike charge %g does not fit int8", ErrRuntimeBounds, delta)
	}
	return t, int8(delta), nil
}

// CheckSpike reports whether ApplySpike would accept s.
func (v *Vector) CheckSpike(s network.Spike, normalized bool) error {
	_, _, err := v.spikeDelta(s, normalized)
	return err
}

// ApplySpike adds charge to an input neuron's slot. Spikes may not reach
// beyond the tracked window.
func (v *Vector) ApplySpike(s network.Spike, normalized bool) error {
	t, delta, err := v.spikeDelta(s, normalized)
	if err != nil {
		return err
	}
	v.charge[v.row(t)+v.inputs[s.ID]] += delta
	return nil
}

// Run processes duration timesteps and pins the current slot to the floor.
func (v *Vector) Run(duration float64) error {
	steps, err := v.opts.steps(duration)
	if err != nil {
		return err
	}
	if v.now != 0 {
		v.clearOutputTracking()
	}

	for t := 0; t < steps; t++ {
		v.processEvents(t)
	}
	v.now += steps

	cur := v.row(0)
	for i := 0; i < v.count; i++ {
		if v.charge[cur+i] < v.minPotential {
			v.charge[cur+i] = v.minPotential
		}
	}
	return nil
}

// processEvents evaluates relative timestep t of the current run.
func (v *Vector) processEvents(t int) {
	cur := v.row(t)
	next := v.row(t + 1)
	v.fired.reset()

	var charges [maxLanes]int8
	var fires [maxLanes]bool

	for base := 0; base < v.alloc; base += v.lanes {
		// Phase 1: load, clamp and compare into temporaries.
		for l := 0; l < v.lanes; l++ {
			c := v.charge[cur+base+l]
			if c < v.minPotential {
				c = v.minPotential
			}
			charges[l] = c
			fires[l] = c >= v.threshold[base+l]
		}

		// Phase 2: record fires and carry unfired, non-leaking charge forward.
		for l := 0; l < v.lanes; l++ {
			i := base + l
			if fires[l] {
				v.fired.set(i)
				continue
			}
			if !v.leak.get(i) {
				v.charge[next+i] += charges[l]
			}
		}
	}

	// Phase 3: scatter the fired neurons' weights into future slots. Delays
	// are in [1, window), so no slot read in phase 1 is written here.
	for i := 0; i < v.count; i++ {
		if !v.fired.get(i) {
			continue
		}
		if v.isOutput.get(i) {
			v.outLast[i] = int32(t)
			v.outCount[i]++
		}
		to, delay, weight := v.synTo[i], v.synDelay[i], v.synWeight[i]
		for k := range to {
			v.charge[v.row(t+int(delay[k]))+int(to[k])] += weight[k]
		}
	}

	clear(v.charge[cur : cur+v.alloc])
}

func (v *Vector) clearOutputTracking() {
	for i := range v.outLast {
		v.outLast[i] = -1
		v.outCount[i] = 0
	}
}

// ClearActivity empties the ring buffer and resets time and output tracking.
func (v *Vector) ClearActivity() {
	clear(v.charge)
	v.fired.reset()
	v.clearOutputTracking()
	v.now = 0
}

func (v *Vector) Time() float64 { return float64(v.now) }

// TrackOutputEvents is unsupported; fire-time history is not kept.
func (v *Vector) TrackOutputEvents(int, bool) bool { return false }

// TrackNeuronEvents is unsupported; fire-time history is not kept.
func (v *Vector) TrackNeuronEvents(uint32, bool) bool { return false }

func (v *Vector) output(outputID int) (int, error) {
	if outputID < 0 || outputID >= len(v.outputs) {
		return 0, fmt.Errorf("%w: output_id %d is not valid", ErrRuntimeBounds, outputID)
	}
	return v.outputs[outputID], nil
}

func (v *Vector) OutputLastFire(outputID int) (float64, error) {
	id, err := v.output(outputID)
	if err != nil {
		return 0, err
	}
	return float64(v.outLast[id]), nil
}

func (v *Vector) OutputLastFires() []float64 {
	out := make([]float64, len(v.outputs))
	for i, id := range v.outputs {
		out[i] = float64(v.outLast[id])
	}
	return out
}

func (v *Vector) OutputCount(outputID int) (int, error) {
	id, err := v.output(outputID)
	if err != nil {
		return 0, err
	}
	return int(v.outCount[id]), nil
}

func (v *Vector) OutputCounts() []int {
	out := make([]int, len(v.outputs))
	for i, id := range v.outputs {
		out[i] = int(v.outCount[id])
	}
	return out
}

// OutputVector validates the id and returns an empty history.
func (v *Vector) OutputVector(outputID int) ([]float64, error) {
	if _, err := v.output(outputID); err != nil {
		return nil, err
	}
	return []float64{}, nil
}

func (v *Vector) OutputVectors() [][]float64 { return [][]float64{} }

func (v *Vector) TotalNeuronCounts() int64 { return -1 }
func (v *Vector) TotalNeuronAccumulates() int64 { return -1 }

func (v *Vector) NeuronCounts() []int { return []int{} }
func (v *Vector) NeuronLastFires() []float64 { return []float64{} }
func (v *Vector) NeuronVectors() [][]float64 { return [][]float64{} }

// NeuronCharges reads the current slot, which holds carried charge plus
// deltas already queued for the next timestep.
func (v *Vector) NeuronCharges() []float64 {
	cur := v.row(0)
	out := make([]float64, len(v.order))
	for i, id := range v.order {
		out[i] = float64(v.charge[cur+int(id)])
	}
	return out
}

func (v *Vector) SynapseWeights() (pres, posts []uint32, vals []float64) {
	pres, posts, vals = []uint32{}, []uint32{}, []float64{}
	for _, id := range v.order {
		for k, to := range v.synTo[id] {
			pres = append(pres, id)
			posts = append(posts, uint32(to))
			vals = append(vals, float64(v.synWeight[id][k]))
		}
	}
	return pres, posts, vals
}

var _ Engine = (*Vector)(nil)
