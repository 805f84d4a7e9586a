// Package hierarchy holds generalization hierarchies for quasi-identifier
// attributes and the index the search uses to look labels up.
package hierarchy

import (
	"fmt"

	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/errors"
)

// Hierarchy is the ordered list of generalization levels of one attribute.
// Level 0 is the identity; level i > 0 maps every registered raw value to a
// label. Two values sharing a label at level i share a label at every level
// above i.
type Hierarchy struct {
	attribute string
	values    []string
	codes     map[string]int

	// labels[level][code] is the label of domain value code at level
	labels [][]string
	// labelIDs[level][code] is a dense id of that label within the level
	labelIDs [][]int
	// leaves[level][labelID] is how many domain values carry the label
	leaves [][]int
}

// New creates a hierarchy over an explicit domain. Each table maps every
// domain value to its label at levels 1..H, in order.
func New(attribute string, domain []string, tables ...map[string]string) (*Hierarchy, error) {
	levels := make([][]string, len(tables))
	for l, table := range tables {
		if len(table) != len(domain) {
			for raw := range table {
				if !contains(domain, raw) {
					return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
						fmt.Sprintf("hierarchy %q level %d maps %q which is not in the domain", attribute, l+1, raw))
				}
			}
		}
		column := make([]string, len(domain))
		for i, raw := range domain {
			label, ok := table[raw]
			if !ok {
				return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
					fmt.Sprintf("hierarchy %q level %d has no label for %q", attribute, l+1, raw))
			}
			column[i] = label
		}
		levels[l] = column
	}
	return build(attribute, domain, levels)
}

// FromRows creates a hierarchy from table rows of the form
// raw, level1, ..., levelH. Every row must have the same width.
func FromRows(attribute string, rows [][]string) (*Hierarchy, error) {
	if len(rows) == 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
			fmt.Sprintf("hierarchy %q has no rows", attribute))
	}
	width := len(rows[0])
	if width == 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
			fmt.Sprintf("hierarchy %q has an empty first row", attribute))
	}

	domain := make([]string, len(rows))
	levels := make([][]string, width-1)
	for l := range levels {
		levels[l] = make([]string, len(rows))
	}
	for i, row := range rows {
		if len(row) != width {
			return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
				fmt.Sprintf("hierarchy %q row %d has %d columns, expected %d", attribute, i, len(row), width))
		}
		domain[i] = row[0]
		for l := 1; l < width; l++ {
			levels[l-1][i] = row[l]
		}
	}
	return build(attribute, domain, levels)
}

func build(attribute string, domain []string, levels [][]string) (*Hierarchy, error) {
	if attribute == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy, "hierarchy attribute name is empty")
	}

	codes := make(map[string]int, len(domain))
	for i, raw := range domain {
		if _, dup := codes[raw]; dup {
			return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
				fmt.Sprintf("hierarchy %q registers %q twice", attribute, raw))
		}
		codes[raw] = i
	}

	h := &Hierarchy{
		attribute: attribute,
		values:    append([]string(nil), domain...),
		codes:     codes,
		labels:    make([][]string, len(levels)+1),
		labelIDs:  make([][]int, len(levels)+1),
		leaves:    make([][]int, len(levels)+1),
	}
	h.labels[0] = h.values
	for l, column := range levels {
		h.labels[l+1] = column
	}

	for l, column := range h.labels {
		ids := make([]int, len(column))
		dense := make(map[string]int)
		var leaves []int
		for code, label := range column {
			id, ok := dense[label]
			if !ok {
				id = len(dense)
				dense[label] = id
				leaves = append(leaves, 0)
			}
			ids[code] = id
			leaves[id]++
		}
		h.labelIDs[l] = ids
		h.leaves[l] = leaves
	}

	if err := h.validateMonotonic(); err != nil {
		return nil, err
	}
	if err := h.validateWildcard(); err != nil {
		return nil, err
	}
	return h, nil
}

// validateWildcard rejects a wildcard label that stands for only part of the
// domain, since a released wildcard matches every value.
func (h *Hierarchy) validateWildcard() error {
	for l := 1; l < len(h.labels); l++ {
		for code, label := range h.labels[l] {
			if label == constants.WildcardMarker && h.Leaves(code, l) != len(h.values) {
				return errors.NewConfigurationError(errors.CodeInvalidHierarchy,
					fmt.Sprintf("hierarchy %q uses %q at level %d for part of the domain; %q is reserved for the whole domain, use another mask",
						h.attribute, label, l, constants.WildcardMarker))
			}
		}
	}
	return nil
}

// validateMonotonic checks adjacent levels; transitivity covers the rest.
func (h *Hierarchy) validateMonotonic() error {
	for l := 1; l < len(h.labels)-1; l++ {
		next := make(map[int]int)
		for code := range h.values {
			id := h.labelIDs[l][code]
			up := h.labelIDs[l+1][code]
			if prev, ok := next[id]; ok && prev != up {
				return errors.NewConfigurationError(errors.CodeNonMonotonicHierarchy,
					fmt.Sprintf("hierarchy %q splits label %q between levels %d and %d",
						h.attribute, h.labels[l][code], l, l+1))
			}
			next[id] = up
		}
	}
	return nil
}

// Attribute returns the attribute this hierarchy generalizes
func (h *Hierarchy) Attribute() string {
	return h.attribute
}

// Height returns H, the highest generalization level
func (h *Hierarchy) Height() int {
	return len(h.labels) - 1
}

// Domain returns the registered raw values in registration order
func (h *Hierarchy) Domain() []string {
	return h.values
}

// Code returns the dense code of a registered raw value
func (h *Hierarchy) Code(raw string) (int, bool) {
	code, ok := h.codes[raw]
	return code, ok
}

// Label returns the label of raw at level
func (h *Hierarchy) Label(raw string, level int) (string, error) {
	code, ok := h.codes[raw]
	if !ok {
		return "", errors.NewUnknownValueError(h.attribute, raw)
	}
	if err := h.checkLevel(level); err != nil {
		return "", err
	}
	return h.labels[level][code], nil
}

// LabelOf returns the label of a domain code at level. The caller guarantees
// both are in range.
func (h *Hierarchy) LabelOf(code, level int) string {
	return h.labels[level][code]
}

// LabelID returns the dense label id of a domain code at level
func (h *Hierarchy) LabelID(code, level int) int {
	return h.labelIDs[level][code]
}

// Cardinality returns the number of distinct labels at level
func (h *Hierarchy) Cardinality(level int) int {
	return len(h.leaves[level])
}

// Leaves returns the number of domain values generalized to the same label
// as code at level
func (h *Hierarchy) Leaves(code, level int) int {
	return h.leaves[level][h.labelIDs[level][code]]
}

func (h *Hierarchy) checkLevel(level int) error {
	if level < 0 || level > h.Height() {
		return errors.NewConfigurationError(errors.CodeInvalidHierarchy,
			fmt.Sprintf("level %d out of range [0,%d] for attribute %q", level, h.Height(), h.attribute))
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
