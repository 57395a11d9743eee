package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/nvandessel/risp/internal/network"
)

func TestNewVector_RejectsOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"window shorter than max delay", func(o *Options) { o.TrackedTimesteps = 4 }},
		{"no window", func(o *Options) { o.TrackedTimesteps = 0; o.MaxDelay = 0 }},
		{"continuous", func(o *Options) { o.Discrete = false }},
		{"odd lane width", func(o *Options) { o.Lanes = 12 }},
		{"positive min potential", func(o *Options) { o.MinPotential = 1 }},
		{"min potential below int8", func(o *Options) { o.MinPotential = -200 }},
		{"weight table", func(o *Options) { o.Weights = []float64{1, 2} }},
		{"noise", func(o *Options) { o.NoisyStddev = 0.5 }},
		{"deferred fire", func(o *Options) { o.FireLikeRavens = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := vectorOptions()
			tt.mutate(&opts)
			_, err := NewVector(singleNeuron(t, 7), opts)
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestNewVector_RejectsTopology(t *testing.T) {
	tests := []struct {
		name  string
		edges []edgeSpec
	}{
		{"zero delay", []edgeSpec{{from: 0, to: 1, weight: 1, delay: 0}}},
		{"delay above max", []edgeSpec{{from: 0, to: 1, weight: 1, delay: 6}}},
		{"fractional weight", []edgeSpec{{from: 0, to: 1, weight: 1.5, delay: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net := buildNetwork(t, false,
				[]nodeSpec{{id: 0, threshold: 7, input: true}, {id: 1, threshold: 7, output: true}},
				tt.edges)
			if _, err := NewVector(net, vectorOptions()); !errors.Is(err, ErrTopologyMismatch) {
				t.Errorf("err = %v, want ErrTopologyMismatch", err)
			}
		})
	}
}

func TestVector_AllocRoundsToLanes(t *testing.T) {
	opts := vectorOptions()
	opts.Lanes = 8
	net := buildNetwork(t, false, []nodeSpec{{id: 20, threshold: 7, input: true}}, nil)
	v := mustVector(t, net, opts)

	if v.count != 21 || v.alloc != 24 {
		t.Errorf("count, alloc = %d, %d; want 21, 24", v.count, v.alloc)
	}
	if len(v.charge) != 8*24 {
		t.Errorf("ring buffer holds %d cells, want %d", len(v.charge), 8*24)
	}
}

func TestVector_SingleNeuronFires(t *testing.T) {
	v := mustVector(t, singleNeuron(t, 7), vectorOptions())

	mustApply(t, v, 0, 0, 1)
	mustRun(t, v, 1)

	if got := mustCount(t, v, 0); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
	if got := mustLastFire(t, v, 0); got != 0 {
		t.Errorf("last fire = %v, want 0", got)
	}
}

func TestVector_SynapseChain(t *testing.T) {
	net := buildNetwork(t, false,
		[]nodeSpec{{id: 0, threshold: 1, input: true}, {id: 1, threshold: 1, output: true}},
		[]edgeSpec{{from: 0, to: 1, weight: 1, delay: 2}})
	v := mustVector(t, net, vectorOptions())

	mustApply(t, v, 0, 0, 1)
	mustRun(t, v, 2)
	if got := mustCount(t, v, 0); got != 0 {
		t.Fatalf("count after run(2) = %d, want 0", got)
	}
	mustRun(t, v, 2)
	if got := mustLastFire(t, v, 0); got != 0 {
		t.Errorf("last fire = %v, want 0 (global step 2)", got)
	}
}

func TestVector_CarryOverAndLeak(t *testing.T) {
	tests := []struct {
		name      string
		leak      LeakMode
		wantFires int
	}{
		{"charge carries without leak", LeakNone, 1},
		{"leak drops charge", LeakAll, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := vectorOptions()
			opts.Leak = tt.leak
			v := mustVector(t, singleNeuron(t, 10), opts)

			mustApply(t, v, 0, 0, 1)   // 7
			mustApply(t, v, 0, 1, 0.5) // 3
			mustRun(t, v, 3)
			if got := mustCount(t, v, 0); got != tt.wantFires {
				t.Errorf("count = %d, want %d", got, tt.wantFires)
			}
		})
	}
}

func TestVector_ExclusiveThreshold(t *testing.T) {
	opts := vectorOptions()
	opts.ThresholdInclusive = false
	v := mustVector(t, singleNeuron(t, 7), opts)

	mustApply(t, v, 0, 0, 1)
	mustRun(t, v, 1)
	if got := mustCount(t, v, 0); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
}

func TestVector_MinPotential(t *testing.T) {
	v := mustVector(t, singleNeuron(t, 7), vectorOptions())

	if err := v.ApplySpike(network.Spike{ID: 0, Time: 0, Value: -20}, false); err != nil {
		t.Fatalf("ApplySpike: %v", err)
	}
	if err := v.ApplySpike(network.Spike{ID: 0, Time: 1, Value: 8}, false); err != nil {
		t.Fatalf("ApplySpike: %v", err)
	}
	mustRun(t, v, 2)

	if got := mustCount(t, v, 0); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
	if got := v.NeuronCharges(); !reflect.DeepEqual(got, []float64{1}) {
		t.Errorf("charges = %v, want [1]", got)
	}
}

func TestVector_SpikeBounds(t *testing.T) {
	v := mustVector(t, singleNeuron(t, 7), vectorOptions())

	bad := []network.Spike{
		{ID: 1, Time: 0, Value: 1},
		{ID: 0, Time: 8, Value: 1},
		{ID: 0, Time: -1, Value: 1},
		{ID: 0, Time: 0, Value: 1.5},
	}
	for _, s := range bad {
		if err := v.ApplySpike(s, true); !errors.Is(err, ErrRuntimeBounds) {
			t.Errorf("ApplySpike(%+v): err = %v, want ErrRuntimeBounds", s, err)
		}
	}
	if err := v.ApplySpike(network.Spike{ID: 0, Value: 200}, false); !errors.Is(err, ErrRuntimeBounds) {
		t.Errorf("oversized raw spike: err = %v, want ErrRuntimeBounds", err)
	}
	if got := v.NeuronCharges(); !reflect.DeepEqual(got, []float64{0}) {
		t.Errorf("charges after rejected spikes = %v, want [0]", got)
	}

	mustApply(t, v, 0, 7, 1)
	mustApply(t, v, 0, 0, -1)
}

func TestVector_ReducedIntrospection(t *testing.T) {
	v := mustVector(t, singleNeuron(t, 7), vectorOptions())
	mustApply(t, v, 0, 0, 1)
	mustRun(t, v, 1)

	if v.TrackOutputEvents(0, true) || v.TrackNeuronEvents(0, true) {
		t.Error("tracking reported as supported")
	}
	if v.TotalNeuronCounts() != -1 || v.TotalNeuronAccumulates() != -1 {
		t.Error("running totals should be -1")
	}
	if len(v.NeuronCounts()) != 0 || len(v.NeuronLastFires()) != 0 || len(v.NeuronVectors()) != 0 {
		t.Error("per-neuron history should be empty")
	}
	vec, err := v.OutputVector(0)
	if err != nil || len(vec) != 0 {
		t.Errorf("OutputVector(0) = %v, %v; want empty, nil", vec, err)
	}
	if _, err := v.OutputVector(1); !errors.Is(err, ErrRuntimeBounds) {
		t.Errorf("OutputVector(1): err = %v, want ErrRuntimeBounds", err)
	}
}

func TestVector_ClearActivity(t *testing.T) {
	v := mustVector(t, singleNeuron(t, 7), vectorOptions())
	mustApply(t, v, 0, 3, 1)
	mustRun(t, v, 2)

	v.ClearActivity()
	if v.Time() != 0 {
		t.Errorf("time = %v, want 0", v.Time())
	}
	mustRun(t, v, 6)
	if got := mustCount(t, v, 0); got != 0 {
		t.Errorf("queued spike survived clear: count = %d", got)
	}
}

func TestVector_SynapseWeights(t *testing.T) {
	net := buildNetwork(t, false,
		[]nodeSpec{{id: 4, threshold: 1}, {id: 2, threshold: 1}},
		[]edgeSpec{
			{from: 4, to: 2, weight: -3, delay: 1},
			{from: 2, to: 4, weight: 5, delay: 2},
		})
	v := mustVector(t, net, vectorOptions())

	pres, posts, vals := v.SynapseWeights()
	if !reflect.DeepEqual(pres, []uint32{2, 4}) ||
		!reflect.DeepEqual(posts, []uint32{4, 2}) ||
		!reflect.DeepEqual(vals, []float64{5, -3}) {
		t.Errorf("got %v %v %v", pres, posts, vals)
	}
}

// equivalenceNetwork is a small recurrent topology with integer values that
// stay well inside int8 range.
func equivalenceNetwork(t *testing.T) *network.Network {
	return buildNetwork(t, false,
		[]nodeSpec{
			{id: 0, threshold: 3, input: true},
			{id: 1, threshold: 3, input: true},
			{id: 2, threshold: 4, output: true},
			{id: 3, threshold: 5, output: true},
			{id: 4, threshold: 2, output: true},
			{id: 5, threshold: 6, output: true},
		},
		[]edgeSpec{
			{from: 0, to: 2, weight: 2, delay: 1},
			{from: 1, to: 2, weight: 2, delay: 2},
			{from: 0, to: 3, weight: 3, delay: 1},
			{from: 1, to: 3, weight: -1, delay: 1},
			{from: 2, to: 3, weight: 3, delay: 2},
			{from: 2, to: 4, weight: 1, delay: 3},
			{from: 3, to: 4, weight: 1, delay: 1},
			{from: 4, to: 5, weight: 4, delay: 1},
			{from: 5, to: 0, weight: 3, delay: 4},
			{from: 3, to: 1, weight: -2, delay: 5},
			{from: 4, to: 2, weight: 2, delay: 2},
		})
}

func TestEngines_AgreeOnDiscreteNetworks(t *testing.T) {
	for _, leak := range []LeakMode{LeakNone, LeakAll} {
		t.Run(string(leak), func(t *testing.T) {
			opts := vectorOptions()
			opts.Leak = leak
			s := mustScalar(t, equivalenceNetwork(t), opts)
			v := mustVector(t, equivalenceNetwork(t), opts)

			values := []float64{0.5, 1, 0.3, 0.9}
			for run := 0; run < 4; run++ {
				for _, e := range []Engine{s, v} {
					for k, val := range values {
						mustApply(t, e, k%2, float64((k+run)%4), val)
					}
					mustRun(t, e, 6)
				}
				if !reflect.DeepEqual(s.OutputCounts(), v.OutputCounts()) {
					t.Fatalf("run %d: counts scalar=%v vector=%v", run, s.OutputCounts(), v.OutputCounts())
				}
				if !reflect.DeepEqual(s.OutputLastFires(), v.OutputLastFires()) {
					t.Fatalf("run %d: last fires scalar=%v vector=%v", run, s.OutputLastFires(), v.OutputLastFires())
				}
			}
		})
	}
}

func TestBitset(t *testing.T) {
	b := newBitset(130)
	if len(b) != 3 {
		t.Fatalf("len = %d, want 3 words", len(b))
	}
	for _, i := range []int{0, 63, 64, 129} {
		b.set(i)
	}
	for i := 0; i < 130; i++ {
		want := i == 0 || i == 63 || i == 64 || i == 129
		if got := b.get(i); got != want {
			t.Errorf("get(%d) = %v, want %v", i, got, want)
		}
	}
	b.reset()
	if b.get(63) {
		t.Error("reset left bit 63 set")
	}
}
