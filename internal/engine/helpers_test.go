package engine

import (
	"testing"

	"github.com/nvandessel/risp/internal/network"
)

// nodeSpec and edgeSpec describe a small test topology.
type nodeSpec struct {
	id        uint32
	threshold float64
	leak      float64
	input     bool
	output    bool
}

type edgeSpec struct {
	from, to uint32
	weight   float64
	delay    float64
}

func testPack(withLeak bool) network.PropertyPack {
	pp := network.NewPropertyPack()
	pp.AddNodeProperty(PropThreshold, -127, 127, network.Double)
	if withLeak {
		pp.AddNodeProperty(PropLeak, 0, 1, network.Boolean)
	}
	pp.AddEdgeProperty(PropWeight, -127, 127, network.Double)
	pp.AddEdgeProperty(PropDelay, 0, 15, network.Integer)
	return pp
}

// buildNetwork creates a network; inputs and outputs are registered in the
// order the nodes are listed.
func buildNetwork(t *testing.T, withLeak bool, nodes []nodeSpec, edges []edgeSpec) *network.Network {
	t.Helper()
	net := network.New(testPack(withLeak))
	for _, ns := range nodes {
		n, err := net.AddNode(ns.id)
		if err != nil {
			t.Fatalf("AddNode(%d): %v", ns.id, err)
		}
		if err := net.SetNodeValue(n, PropThreshold, ns.threshold); err != nil {
			t.Fatalf("set threshold: %v", err)
		}
		if withLeak {
			if err := net.SetNodeValue(n, PropLeak, ns.leak); err != nil {
				t.Fatalf("set leak: %v", err)
			}
		}
	}
	for _, ns := range nodes {
		if ns.input {
			if _, err := net.AddInput(ns.id); err != nil {
				t.Fatalf("AddInput(%d): %v", ns.id, err)
			}
		}
	}
	for _, ns := range nodes {
		if ns.output {
			if _, err := net.AddOutput(ns.id); err != nil {
				t.Fatalf("AddOutput(%d): %v", ns.id, err)
			}
		}
	}
	for _, es := range edges {
		e, err := net.AddEdge(es.from, es.to)
		if err != nil {
			t.Fatalf("AddEdge(%d->%d): %v", es.from, es.to, err)
		}
		if err := net.SetEdgeValue(e, PropWeight, es.weight); err != nil {
			t.Fatalf("set weight: %v", err)
		}
		if err := net.SetEdgeValue(e, PropDelay, es.delay); err != nil {
			t.Fatalf("set delay: %v", err)
		}
	}
	return net
}

// singleNeuron is one neuron that is both input 0 and output 0.
func singleNeuron(t *testing.T, threshold float64) *network.Network {
	t.Helper()
	return buildNetwork(t, false, []nodeSpec{{id: 0, threshold: threshold, input: true, output: true}}, nil)
}

func scalarOptions() Options {
	return Options{
		SpikeValueFactor:   1,
		MinPotential:       0,
		Leak:               LeakNone,
		ThresholdInclusive: true,
		MaxDelay:           15,
	}
}

func vectorOptions() Options {
	return Options{
		SpikeValueFactor:   7,
		MinPotential:       -7,
		Leak:               LeakNone,
		ThresholdInclusive: true,
		Discrete:           true,
		MaxDelay:           5,
		TrackedTimesteps:   8,
	}
}

func mustScalar(t *testing.T, net *network.Network, opts Options) *Scalar {
	t.Helper()
	s, err := NewScalar(net, opts)
	if err != nil {
		t.Fatalf("NewScalar: %v", err)
	}
	return s
}

func mustVector(t *testing.T, net *network.Network, opts Options) *Vector {
	t.Helper()
	v, err := NewVector(net, opts)
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	return v
}

func mustApply(t *testing.T, e Engine, id int, at, value float64) {
	t.Helper()
	if err := e.ApplySpike(network.Spike{ID: id, Time: at, Value: value}, true); err != nil {
		t.Fatalf("ApplySpike(%d, %g, %g): %v", id, at, value, err)
	}
}

func mustRun(t *testing.T, e Engine, d float64) {
	t.Helper()
	if err := e.Run(d); err != nil {
		t.Fatalf("Run(%g): %v", d, err)
	}
}

func mustCount(t *testing.T, e Engine, outputID int) int {
	t.Helper()
	n, err := e.OutputCount(outputID)
	if err != nil {
		t.Fatalf("OutputCount(%d): %v", outputID, err)
	}
	return n
}

func mustLastFire(t *testing.T, e Engine, outputID int) float64 {
	t.Helper()
	f, err := e.OutputLastFire(outputID)
	if err != nil {
		t.Fatalf("OutputLastFire(%d): %v", outputID, err)
	}
	return f
}
