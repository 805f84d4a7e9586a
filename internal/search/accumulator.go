package search

import (
	"sync"

	"github.com/inferloop/tabanon/internal/lattice"
)

type candidate struct {
	node       lattice.Node
	loss       float64
	suppressed []int
}

// better orders candidates by loss, then suppressed records, then level vector
func (c *candidate) better(other *candidate) bool {
	if c.loss != other.loss {
		return c.loss < other.loss
	}
	if len(c.suppressed) != len(other.suppressed) {
		return len(c.suppressed) < len(other.suppressed)
	}
	return c.node.Compare(other.node) < 0
}

// accumulator is the single slot holding the best candidate so far
type accumulator struct {
	mu   sync.Mutex
	best *candidate
}

// offer replaces the best candidate only with a strictly better one
func (a *accumulator) offer(c *candidate) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.best == nil || c.better(a.best) {
		c.node = c.node.Clone()
		a.best = c
		return true
	}
	return false
}

// prunes reports whether a node of this loss can no longer win
func (a *accumulator) prunes(loss float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.best != nil && loss > a.best.loss
}

func (a *accumulator) result() *candidate {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.best
}
