package processor

import (
	"testing"

	"github.com/nvandessel/risp/internal/engine"
	"github.com/nvandessel/risp/internal/network"
)

func scalarParams() Params {
	return Params{
		MinWeight:    Float(-1),
		MaxWeight:    Float(1),
		MinThreshold: 0,
		MaxThreshold: 1,
		MinPotential: -1,
		MaxDelay:     5,
	}
}

func vectorParams() Params {
	return Params{
		Engine:           engine.KindVectorized,
		MinWeight:        Float(-7),
		MaxWeight:        Float(7),
		MinThreshold:     0,
		MaxThreshold:     7,
		MinPotential:     -7,
		MaxDelay:         5,
		TrackedTimesteps: 8,
	}
}

func mustProcessor(t *testing.T, params Params, opts ...Option) *Processor {
	t.Helper()
	p, err := New(params, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// relayNetwork is input node 0 feeding output node 1 with the given weight
// and delay, built against pp.
func relayNetwork(t *testing.T, pp network.PropertyPack, threshold, weight, delay float64) *network.Network {
	t.Helper()
	net := network.New(pp)
	for _, id := range []uint32{0, 1} {
		n, err := net.AddNode(id)
		if err != nil {
			t.Fatalf("AddNode(%d): %v", id, err)
		}
		if err := net.SetNodeValue(n, engine.PropThreshold, threshold); err != nil {
			t.Fatalf("set threshold: %v", err)
		}
	}
	if _, err := net.AddInput(0); err != nil {
		t.Fatalf("AddInput: %v", err)
	}
	if _, err := net.AddOutput(1); err != nil {
		t.Fatalf("AddOutput: %v", err)
	}
	e, err := net.AddEdge(0, 1)
	if err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if err := net.SetEdgeValue(e, engine.PropWeight, weight); err != nil {
		t.Fatalf("set weight: %v", err)
	}
	if err := net.SetEdgeValue(e, engine.PropDelay, delay); err != nil {
		t.Fatalf("set delay: %v", err)
	}
	return net
}

func mustLoad(t *testing.T, p *Processor, net *network.Network, id int) {
	t.Helper()
	if ok, err := p.LoadNetwork(net, id); !ok {
		t.Fatalf("LoadNetwork(%d): %v", id, err)
	}
}
