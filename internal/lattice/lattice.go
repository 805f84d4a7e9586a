// Package lattice enumerates joint generalization levels over the
// quasi-identifiers. Nodes are generated on demand; the lattice itself never
// holds more than the per-attribute heights.
package lattice

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/inferloop/tabanon/pkg/errors"
)

// Node is one generalization level per quasi-identifier, in lattice
// attribute order.
type Node []int

// Clone returns a copy of n
func (n Node) Clone() Node {
	return append(Node(nil), n...)
}

// Key returns a compact string usable as a map key
func (n Node) Key() string {
	var b strings.Builder
	for i, v := range n {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// String renders the node as [l0,l1,...]
func (n Node) String() string {
	return "[" + strings.ReplaceAll(n.Key(), ".", ",") + "]"
}

// Equal reports whether two nodes have identical levels
func (n Node) Equal(other Node) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if n[i] != other[i] {
			return false
		}
	}
	return true
}

// LessEq reports the pointwise order n <= other
func (n Node) LessEq(other Node) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if n[i] > other[i] {
			return false
		}
	}
	return true
}

// Compare orders nodes lexicographically by level vector
func (n Node) Compare(other Node) int {
	for i := 0; i < len(n) && i < len(other); i++ {
		switch {
		case n[i] < other[i]:
			return -1
		case n[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(n) < len(other):
		return -1
	case len(n) > len(other):
		return 1
	}
	return 0
}

// Level is the sum of all coordinates, the node's distance from the bottom
func (n Node) Level() int {
	sum := 0
	for _, v := range n {
		sum += v
	}
	return sum
}

// Lattice is the Cartesian product of [0, H_a] over the quasi-identifiers
type Lattice struct {
	attributes []string
	heights    []int
}

// New creates a lattice from attribute names and hierarchy heights
func New(attributes []string, heights []int) (*Lattice, error) {
	if len(attributes) != len(heights) {
		return nil, errors.NewConfigurationError(errors.CodeInvalidSchema,
			fmt.Sprintf("%d attributes but %d heights", len(attributes), len(heights)))
	}
	for i, h := range heights {
		if h < 0 {
			return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
				fmt.Sprintf("attribute %q has negative height %d", attributes[i], h))
		}
	}
	return &Lattice{
		attributes: append([]string(nil), attributes...),
		heights:    append([]int(nil), heights...),
	}, nil
}

// Attributes returns the quasi-identifier names in coordinate order
func (l *Lattice) Attributes() []string {
	return l.attributes
}

// Heights returns the per-attribute maximum levels
func (l *Lattice) Heights() []int {
	return l.heights
}

// Dimensions returns the number of quasi-identifiers
func (l *Lattice) Dimensions() int {
	return len(l.heights)
}

// Bottom returns the all-zero node
func (l *Lattice) Bottom() Node {
	return make(Node, len(l.heights))
}

// Top returns the fully generalized node
func (l *Lattice) Top() Node {
	return Node(append([]int(nil), l.heights...))
}

// MaxLevel returns the level of the top node
func (l *Lattice) MaxLevel() int {
	return l.Top().Level()
}

// Size returns the number of nodes, saturating at math.MaxUint64
func (l *Lattice) Size() uint64 {
	size := uint64(1)
	for _, h := range l.heights {
		f := uint64(h) + 1
		if size > math.MaxUint64/f {
			return math.MaxUint64
		}
		size *= f
	}
	return size
}

// Contains reports whether n is a node of this lattice
func (l *Lattice) Contains(n Node) bool {
	if len(n) != len(l.heights) {
		return false
	}
	for i, v := range n {
		if v < 0 || v > l.heights[i] {
			return false
		}
	}
	return true
}

// Successors returns the nodes obtained by raising exactly one coordinate by one
func (l *Lattice) Successors(n Node) []Node {
	var out []Node
	for i, v := range n {
		if v < l.heights[i] {
			s := n.Clone()
			s[i]++
			out = append(out, s)
		}
	}
	return out
}

// Predecessors returns the nodes obtained by lowering exactly one coordinate by one
func (l *Lattice) Predecessors(n Node) []Node {
	var out []Node
	for i, v := range n {
		if v > 0 {
			p := n.Clone()
			p[i]--
			out = append(out, p)
		}
	}
	return out
}

// Walk visits every node in lexicographic order until fn returns false.
// The node passed to fn is reused between calls; clone it to keep it.
func (l *Lattice) Walk(fn func(Node) bool) {
	n := l.Bottom()
	for {
		if !fn(n) {
			return
		}
		i := len(n) - 1
		for ; i >= 0; i-- {
			if n[i] < l.heights[i] {
				n[i]++
				break
			}
			n[i] = 0
		}
		if i < 0 {
			return
		}
	}
}
