package hierarchy

import (
	"fmt"

	"github.com/inferloop/tabanon/pkg/errors"
)

// Index gives read-only access to the hierarchies of all quasi-identifiers.
// It is safe for concurrent use.
type Index struct {
	hierarchies map[string]*Hierarchy
	order       []string
}

// NewIndex creates an index over the given hierarchies
func NewIndex(hierarchies ...*Hierarchy) (*Index, error) {
	idx := &Index{
		hierarchies: make(map[string]*Hierarchy, len(hierarchies)),
	}
	for _, h := range hierarchies {
		if h == nil {
			return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy, "nil hierarchy")
		}
		if _, dup := idx.hierarchies[h.Attribute()]; dup {
			return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
				fmt.Sprintf("attribute %q has more than one hierarchy", h.Attribute()))
		}
		idx.hierarchies[h.Attribute()] = h
		idx.order = append(idx.order, h.Attribute())
	}
	return idx, nil
}

// LevelOf returns the label of rawValue at level in the hierarchy of attribute
func (x *Index) LevelOf(attribute, rawValue string, level int) (string, error) {
	h, err := x.lookup(attribute)
	if err != nil {
		return "", err
	}
	return h.Label(rawValue, level)
}

// HeightOf returns the height of the hierarchy of attribute
func (x *Index) HeightOf(attribute string) (int, error) {
	h, err := x.lookup(attribute)
	if err != nil {
		return 0, err
	}
	return h.Height(), nil
}

// Heights returns the heights for the given attributes, in order
func (x *Index) Heights(attributes []string) ([]int, error) {
	heights := make([]int, len(attributes))
	for i, attr := range attributes {
		h, err := x.HeightOf(attr)
		if err != nil {
			return nil, err
		}
		heights[i] = h
	}
	return heights, nil
}

// Hierarchy returns the hierarchy of attribute
func (x *Index) Hierarchy(attribute string) (*Hierarchy, bool) {
	h, ok := x.hierarchies[attribute]
	return h, ok
}

// Attributes returns the indexed attributes in registration order
func (x *Index) Attributes() []string {
	return x.order
}

func (x *Index) lookup(attribute string) (*Hierarchy, error) {
	h, ok := x.hierarchies[attribute]
	if !ok {
		return nil, errors.NewConfigurationError(errors.CodeMissingHierarchy,
			fmt.Sprintf("no hierarchy for attribute %q", attribute))
	}
	return h, nil
}
