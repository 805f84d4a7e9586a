package privacy

import (
	"encoding/binary"

	"github.com/inferloop/tabanon/internal/hierarchy"
	"github.com/inferloop/tabanon/internal/lattice"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// EquivalenceClass is the set of records sharing one generalized
// quasi-identifier tuple at a node. Members are row positions in the dataset.
type EquivalenceClass struct {
	// ID is the order of first occurrence within its partition
	ID      int
	Members []int
}

// Size returns the number of records in the class
func (c *EquivalenceClass) Size() int {
	return len(c.Members)
}

// Partition groups every record of a dataset into equivalence classes at one node
type Partition struct {
	Node    lattice.Node
	Classes []*EquivalenceClass
	Records int

	classifier *Classifier
}

// Labels returns the generalized quasi-identifier tuple shared by the class
func (p *Partition) Labels(class *EquivalenceClass) []string {
	return p.classifier.Generalize(class.Members[0], p.Node)
}

// RecordIDs returns the record ids of the class members
func (p *Partition) RecordIDs(class *EquivalenceClass) []int {
	ids := make([]int, len(class.Members))
	for i, pos := range class.Members {
		ids[i] = p.classifier.ids[pos]
	}
	return ids
}

// Classifier groups records by their generalized quasi-identifiers. The raw
// values are encoded once at construction; classifying a node only reads
// shared state, so one classifier serves concurrent callers.
type Classifier struct {
	attributes  []string
	hierarchies []*hierarchy.Hierarchy
	// codes[position][i] is the domain code of the record's value for attributes[i]
	codes [][]int32
	ids   []int
}

// NewClassifier encodes the quasi-identifier columns of ds against the
// hierarchies in idx. It fails with an UnknownValueError on the first raw
// value missing from its hierarchy.
func NewClassifier(ds *models.Dataset, idx *hierarchy.Index, attributes []string) (*Classifier, error) {
	hs := make([]*hierarchy.Hierarchy, len(attributes))
	cols := make([]int, len(attributes))
	for i, attr := range attributes {
		col, ok := ds.Column(attr)
		if !ok {
			return nil, errors.NewConfigurationError(errors.CodeInvalidSchema,
				"quasi-identifier "+attr+" is not in the dataset")
		}
		h, ok := idx.Hierarchy(attr)
		if !ok {
			return nil, errors.NewConfigurationError(errors.CodeMissingHierarchy,
				"no hierarchy for quasi-identifier "+attr)
		}
		hs[i] = h
		cols[i] = col
	}

	records := ds.Records()
	codes := make([][]int32, len(records))
	ids := make([]int, len(records))
	for pos, rec := range records {
		row := make([]int32, len(attributes))
		for i, h := range hs {
			raw := rec.Values[cols[i]]
			code, ok := h.Code(raw)
			if !ok {
				return nil, &errors.UnknownValueError{Attribute: attributes[i], Value: raw, RecordID: rec.ID}
			}
			row[i] = int32(code)
		}
		codes[pos] = row
		ids[pos] = rec.ID
	}

	return &Classifier{
		attributes:  append([]string(nil), attributes...),
		hierarchies: hs,
		codes:       codes,
		ids:         ids,
	}, nil
}

// Attributes returns the quasi-identifiers in node coordinate order
func (c *Classifier) Attributes() []string {
	return c.attributes
}

// Records returns the number of encoded records
func (c *Classifier) Records() int {
	return len(c.codes)
}

// RecordID returns the record id at a row position
func (c *Classifier) RecordID(position int) int {
	return c.ids[position]
}

// Classify groups every record by its generalized tuple at node. Classes are
// ordered by first occurrence.
func (c *Classifier) Classify(node lattice.Node) *Partition {
	index := make(map[string]int)
	var classes []*EquivalenceClass
	key := make([]byte, 0, len(c.attributes)*binary.MaxVarintLen32)

	for pos, row := range c.codes {
		key = key[:0]
		for i, h := range c.hierarchies {
			key = binary.AppendUvarint(key, uint64(h.LabelID(int(row[i]), node[i])))
		}
		if id, ok := index[string(key)]; ok {
			classes[id].Members = append(classes[id].Members, pos)
			continue
		}
		id := len(classes)
		index[string(key)] = id
		classes = append(classes, &EquivalenceClass{ID: id, Members: []int{pos}})
	}

	return &Partition{
		Node:       node.Clone(),
		Classes:    classes,
		Records:    len(c.codes),
		classifier: c,
	}
}

// Generalize returns the labels of the record at position under node
func (c *Classifier) Generalize(position int, node lattice.Node) []string {
	row := c.codes[position]
	labels := make([]string, len(c.hierarchies))
	for i, h := range c.hierarchies {
		labels[i] = h.LabelOf(int(row[i]), node[i])
	}
	return labels
}
