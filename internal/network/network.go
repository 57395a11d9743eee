package network

import (
	"fmt"
	"sort"
)

// Node is a neuron in the topology. InputID and OutputID are -1 unless the
// node has been registered as an input or output.
type Node struct {
	ID       uint32
	Values   []float64
	InputID  int
	OutputID int
}

// IsInput reports whether the node receives external spikes.
func (n *Node) IsInput() bool { return n.InputID >= 0 }

// IsOutput reports whether the node is an output.
func (n *Node) IsOutput() bool { return n.OutputID >= 0 }

// Edge is a directed synapse between two nodes.
type Edge struct {
	From   uint32
	To     uint32
	Values []float64
}

type edgeKey struct{ from, to uint32 }

// Network is a fully formed topology. Edges keep their insertion order so
// that every consumer walks them identically.
type Network struct {
	properties PropertyPack
	nodes      map[uint32]*Node
	edges      []*Edge
	edgeIndex  map[edgeKey]int
	inputs     []uint32
	outputs    []uint32
}

// New creates an empty network governed by the given property pack.
func New(pp PropertyPack) *Network {
	return &Network{
		properties: pp,
		nodes:      make(map[uint32]*Node),
		edgeIndex:  make(map[edgeKey]int),
	}
}

// Properties returns the network's declared schema.
func (n *Network) Properties() PropertyPack { return n.properties }

// AddNode creates a node with a zeroed value vector.
func (n *Network) AddNode(id uint32) (*Node, error) {
	if _, exists := n.nodes[id]; exists {
		return nil, fmt.Errorf("node %d already exists", id)
	}
	node := &Node{
		ID:       id,
		Values:   make([]float64, n.properties.NodeVectorSize()),
		InputID:  -1,
		OutputID: -1,
	}
	n.nodes[id] = node
	return node, nil
}

// Node returns the node with the given id, or nil.
func (n *Network) Node(id uint32) *Node { return n.nodes[id] }

// NumNodes returns the node count.
func (n *Network) NumNodes() int { return len(n.nodes) }

// AddEdge creates an edge between two existing nodes.
func (n *Network) AddEdge(from, to uint32) (*Edge, error) {
	if _, ok := n.nodes[from]; !ok {
		return nil, fmt.Errorf("edge %d->%d: node %d does not exist", from, to, from)
	}
	if _, ok := n.nodes[to]; !ok {
		return nil, fmt.Errorf("edge %d->%d: node %d does not exist", from, to, to)
	}
	key := edgeKey{from, to}
	if _, exists := n.edgeIndex[key]; exists {
		return nil, fmt.Errorf("edge %d->%d already exists", from, to)
	}
	e := &Edge{From: from, To: to, Values: make([]float64, n.properties.EdgeVectorSize())}
	n.edgeIndex[key] = len(n.edges)
	n.edges = append(n.edges, e)
	return e, nil
}

// Edge returns the edge between from and to, or nil.
func (n *Network) Edge(from, to uint32) *Edge {
	i, ok := n.edgeIndex[edgeKey{from, to}]
	if !ok {
		return nil
	}
	return n.edges[i]
}

// Edges returns all edges in insertion order.
func (n *Network) Edges() []*Edge { return n.edges }

// AddInput registers the node as the next input and returns its input id.
func (n *Network) AddInput(id uint32) (int, error) {
	node, ok := n.nodes[id]
	if !ok {
		return -1, fmt.Errorf("add input: node %d does not exist", id)
	}
	if node.IsInput() {
		return -1, fmt.Errorf("add input: node %d is already input %d", id, node.InputID)
	}
	node.InputID = len(n.inputs)
	n.inputs = append(n.inputs, id)
	return node.InputID, nil
}

// AddOutput registers the node as the next output and returns its output id.
func (n *Network) AddOutput(id uint32) (int, error) {
	node, ok := n.nodes[id]
	if !ok {
		return -1, fmt.Errorf("add output: node %d does not exist", id)
	}
	if node.IsOutput() {
		return -1, fmt.Errorf("add output: node %d is already output %d", id, node.OutputID)
	}
	node.OutputID = len(n.outputs)
	n.outputs = append(n.outputs, id)
	return node.OutputID, nil
}

// Inputs returns node ids indexed by input id.
func (n *Network) Inputs() []uint32 { return n.inputs }

// Outputs returns node ids indexed by output id.
func (n *Network) Outputs() []uint32 { return n.outputs }

// SortedNodes returns the nodes ordered by ascending id.
func (n *Network) SortedNodes() []*Node {
	out := make([]*Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsNodeProperty reports whether the schema declares a node property.
func (n *Network) IsNodeProperty(name string) bool {
	_, ok := n.properties.Nodes[name]
	return ok
}

// IsEdgeProperty reports whether the schema declares an edge property.
func (n *Network) IsEdgeProperty(name string) bool {
	_, ok := n.properties.Edges[name]
	return ok
}

// NodeValue reads a named property from a node's value vector.
func (n *Network) NodeValue(node *Node, name string) (float64, error) {
	p, ok := n.properties.Nodes[name]
	if !ok {
		return 0, fmt.Errorf("node property %s is not declared", name)
	}
	if p.Index >= len(node.Values) {
		return 0, fmt.Errorf("node %d: value vector too short for %s", node.ID, name)
	}
	return node.Values[p.Index], nil
}

// SetNodeValue writes a named property into a node's value vector.
func (n *Network) SetNodeValue(node *Node, name string, v float64) error {
	p, ok := n.properties.Nodes[name]
	if !ok {
		return fmt.Errorf("node property %s is not declared", name)
	}
	if p.Index >= len(node.Values) {
		return fmt.Errorf("node %d: value vector too short for %s", node.ID, name)
	}
	node.Values[p.Index] = v
	return nil
}

// EdgeValue reads a named property from an edge's value vector.
func (n *Network) EdgeValue(e *Edge, name string) (float64, error) {
	p, ok := n.properties.Edges[name]
	if !ok {
		return 0, fmt.Errorf("edge property %s is not declared", name)
	}
	if p.Index >= len(e.Values) {
		return 0, fmt.Errorf("edge %d->%d: value vector too short for %s", e.From, e.To, name)
	}
	return e.Values[p.Index], nil
}

// SetEdgeValue writes a named property into an edge's value vector.
func (n *Network) SetEdgeValue(e *Edge, name string, v float64) error {
	p, ok := n.properties.Edges[name]
	if !ok {
		return fmt.Errorf("edge property %s is not declared", name)
	}
	if p.Index >= len(e.Values) {
		return fmt.Errorf("edge %d->%d: value vector too short for %s", e.From, e.To, name)
	}
	e.Values[p.Index] = v
	return nil
}

// Spike is an event applied to an input: ID is the input id, Time is the
// offset from the current network time, Value is the amplitude.
type Spike struct {
	ID    int     `json:"id" yaml:"id"`
	Time  float64 `json:"time" yaml:"time"`
	Value float64 `json:"value" yaml:"value"`
}
