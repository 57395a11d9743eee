// Package network defines the topology handed to a processor at load time:
// typed property schemas, nodes and edges carrying value vectors addressed
// through those schemas, and the spikes applied to input nodes.
package network

import (
	"fmt"
	"sort"
	"strings"
)

// PropertyType is the value domain of a property.
type PropertyType byte

const (
	Integer PropertyType = 'I'
	Double  PropertyType = 'D'
	Boolean PropertyType = 'B'
)

// String returns the one-letter code used in property listings.
func (t PropertyType) String() string {
	return string(rune(t))
}

// MarshalText encodes the type as its one-letter code.
func (t PropertyType) MarshalText() ([]byte, error) {
	return []byte{byte(t)}, nil
}

// UnmarshalText accepts I, D or B.
func (t *PropertyType) UnmarshalText(text []byte) error {
	if len(text) != 1 {
		return fmt.Errorf("invalid property type %q", text)
	}
	switch PropertyType(text[0]) {
	case Integer, Double, Boolean:
		*t = PropertyType(text[0])
		return nil
	}
	return fmt.Errorf("invalid property type %q (valid: I, D, B)", text)
}

// Property is one named slot (or run of Size slots) in a node, edge or
// network value vector.
type Property struct {
	Name  string       `json:"name" yaml:"name"`
	Index int          `json:"index" yaml:"index"`
	Size  int          `json:"size" yaml:"size"`
	Min   float64      `json:"min" yaml:"min"`
	Max   float64      `json:"max" yaml:"max"`
	Type  PropertyType `json:"type" yaml:"type"`
}

// PropertyPack groups the node, edge and network schemas of a topology.
type PropertyPack struct {
	Nodes    map[string]Property `json:"node_properties" yaml:"node_properties"`
	Edges    map[string]Property `json:"edge_properties" yaml:"edge_properties"`
	Networks map[string]Property `json:"network_properties" yaml:"network_properties"`
}

// NewPropertyPack returns an empty pack.
func NewPropertyPack() PropertyPack {
	return PropertyPack{
		Nodes:    make(map[string]Property),
		Edges:    make(map[string]Property),
		Networks: make(map[string]Property),
	}
}

// AddNodeProperty appends a node property and returns its index.
func (pp *PropertyPack) AddNodeProperty(name string, min, max float64, typ PropertyType) int {
	if pp.Nodes == nil {
		pp.Nodes = make(map[string]Property)
	}
	return addProperty(pp.Nodes, name, min, max, typ)
}

// AddEdgeProperty appends an edge property and returns its index.
func (pp *PropertyPack) AddEdgeProperty(name string, min, max float64, typ PropertyType) int {
	if pp.Edges == nil {
		pp.Edges = make(map[string]Property)
	}
	return addProperty(pp.Edges, name, min, max, typ)
}

// AddNetworkProperty appends a network-level property and returns its index.
func (pp *PropertyPack) AddNetworkProperty(name string, min, max float64, typ PropertyType) int {
	if pp.Networks == nil {
		pp.Networks = make(map[string]Property)
	}
	return addProperty(pp.Networks, name, min, max, typ)
}

func addProperty(m map[string]Property, name string, min, max float64, typ PropertyType) int {
	if p, ok := m[name]; ok {
		return p.Index
	}
	idx := vectorSize(m)
	m[name] = Property{Name: name, Index: idx, Size: 1, Min: min, Max: max, Type: typ}
	return idx
}

// NodeVectorSize is the number of values each node carries.
func (pp PropertyPack) NodeVectorSize() int { return vectorSize(pp.Nodes) }

// EdgeVectorSize is the number of values each edge carries.
func (pp PropertyPack) EdgeVectorSize() int { return vectorSize(pp.Edges) }

func vectorSize(m map[string]Property) int {
	n := 0
	for _, p := range m {
		if end := p.Index + p.Size; end > n {
			n = end
		}
	}
	return n
}

// Equal reports whether two packs declare identical schemas.
func (pp PropertyPack) Equal(other PropertyPack) bool {
	return equalProps(pp.Nodes, other.Nodes) &&
		equalProps(pp.Edges, other.Edges) &&
		equalProps(pp.Networks, other.Networks)
}

func equalProps(a, b map[string]Property) bool {
	if len(a) != len(b) {
		return false
	}
	for name, pa := range a {
		pb, ok := b[name]
		if !ok || pa != pb {
			return false
		}
	}
	return true
}

// Diff lists human-readable differences between pp and other, in name order.
func (pp PropertyPack) Diff(other PropertyPack) []string {
	var out []string
	out = append(out, diffProps("node", pp.Nodes, other.Nodes)...)
	out = append(out, diffProps("edge", pp.Edges, other.Edges)...)
	out = append(out, diffProps("network", pp.Networks, other.Networks)...)
	return out
}

func diffProps(kind string, a, b map[string]Property) []string {
	names := make(map[string]bool, len(a)+len(b))
	for n := range a {
		names[n] = true
	}
	for n := range b {
		names[n] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	var out []string
	for _, n := range sorted {
		pa, inA := a[n]
		pb, inB := b[n]
		switch {
		case !inB:
			out = append(out, fmt.Sprintf("%s property %s missing", kind, n))
		case !inA:
			out = append(out, fmt.Sprintf("unexpected %s property %s", kind, n))
		case pa != pb:
			out = append(out, fmt.Sprintf("%s property %s: want %s, got %s", kind, n, pa, pb))
		}
	}
	return out
}

// String renders a property compactly, e.g. "Threshold[0] D [-1,7]".
func (p Property) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d", p.Name, p.Index)
	if p.Size != 1 {
		fmt.Fprintf(&b, "+%d", p.Size)
	}
	fmt.Fprintf(&b, "] %s [%g,%g]", p.Type, p.Min, p.Max)
	return b.String()
}
