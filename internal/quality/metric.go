package quality

import (
	"fmt"
	"math"
	"sort"

	"github.com/inferloop/tabanon/internal/hierarchy"
	"github.com/inferloop/tabanon/internal/lattice"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// MetricKind selects how information loss is measured per attribute
type MetricKind string

const (
	// KindHeight scores an attribute by its normalized generalization level
	KindHeight MetricKind = "height"
	// KindLoss scores an attribute by the mean normalized label width over records
	KindLoss MetricKind = "loss"
)

// Aggregation combines per-attribute scores
type Aggregation string

const (
	AggregationSum         Aggregation = "sum"
	AggregationWeightedSum Aggregation = "weighted_sum"
)

// MetricConfig configures the loss metric
type MetricConfig struct {
	Kind        MetricKind         `json:"kind" yaml:"kind" mapstructure:"kind"`
	Aggregation Aggregation        `json:"aggregation" yaml:"aggregation" mapstructure:"aggregation"`
	Weights     map[string]float64 `json:"weights,omitempty" yaml:"weights" mapstructure:"weights"`
}

// DefaultMetricConfig returns the unweighted height metric
func DefaultMetricConfig() MetricConfig {
	return MetricConfig{Kind: KindHeight, Aggregation: AggregationSum}
}

// Validate checks the metric settings against the quasi-identifiers
func (c MetricConfig) Validate(quasiIdentifiers []string) error {
	ve := errors.NewValidationErrors()
	switch c.Kind {
	case KindHeight, KindLoss, "":
	default:
		ve.Add("metric.kind", errors.CodeInvalidMetric, "unknown loss metric", string(c.Kind))
	}
	switch c.Aggregation {
	case AggregationSum, AggregationWeightedSum, "":
	default:
		ve.Add("metric.aggregation", errors.CodeInvalidMetric, "unknown aggregation", string(c.Aggregation))
	}

	known := make(map[string]bool, len(quasiIdentifiers))
	for _, qi := range quasiIdentifiers {
		known[qi] = true
	}
	names := make([]string, 0, len(c.Weights))
	for name := range c.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w := c.Weights[name]
		if !known[name] {
			ve.Add("metric.weights."+name, errors.CodeInvalidMetric, "weight for an attribute that is not a quasi-identifier", w)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			ve.Add("metric.weights."+name, errors.CodeInvalidMetric, "weight must be a non-negative number", w)
		}
	}
	return ve.ErrOrNil()
}

// Metric scores a lattice node. Scores never decrease along lattice edges.
type Metric interface {
	Loss(node lattice.Node) float64
	Name() string
}

// NewMetric builds the configured metric for the quasi-identifiers of ds in
// node coordinate order.
func NewMetric(config MetricConfig, ds *models.Dataset, idx *hierarchy.Index, attributes []string) (Metric, error) {
	if err := config.Validate(attributes); err != nil {
		return nil, err
	}

	weights := make([]float64, len(attributes))
	for i, attr := range attributes {
		weights[i] = 1
		if config.Aggregation == AggregationWeightedSum {
			if w, ok := config.Weights[attr]; ok {
				weights[i] = w
			}
		}
	}

	// table[i][level] is the score of attribute i at level
	table := make([][]float64, len(attributes))
	for i, attr := range attributes {
		h, ok := idx.Hierarchy(attr)
		if !ok {
			return nil, errors.NewConfigurationError(errors.CodeMissingHierarchy,
				fmt.Sprintf("no hierarchy for quasi-identifier %s", attr))
		}
		var (
			row []float64
			err error
		)
		switch config.Kind {
		case KindLoss:
			row, err = lossScores(ds, h)
		default:
			row = heightScores(h)
		}
		if err != nil {
			return nil, err
		}
		table[i] = row
	}

	kind := config.Kind
	if kind == "" {
		kind = KindHeight
	}
	return &tableMetric{name: string(kind), weights: weights, table: table}, nil
}

type tableMetric struct {
	name    string
	weights []float64
	table   [][]float64
}

func (m *tableMetric) Name() string {
	return m.name
}

func (m *tableMetric) Loss(node lattice.Node) float64 {
	total := 0.0
	for i, level := range node {
		total += m.weights[i] * m.table[i][level]
	}
	return total
}

func heightScores(h *hierarchy.Hierarchy) []float64 {
	height := h.Height()
	row := make([]float64, height+1)
	if height == 0 {
		return row
	}
	for level := range row {
		row[level] = float64(level) / float64(height)
	}
	return row
}

// lossScores averages (leaves(label)-1)/(|domain|-1) over the records of ds
func lossScores(ds *models.Dataset, h *hierarchy.Hierarchy) ([]float64, error) {
	col, ok := ds.Column(h.Attribute())
	if !ok {
		return nil, errors.NewConfigurationError(errors.CodeInvalidSchema,
			fmt.Sprintf("quasi-identifier %s is not in the dataset", h.Attribute()))
	}

	counts := make([]int, len(h.Domain()))
	for _, rec := range ds.Records() {
		code, ok := h.Code(rec.Values[col])
		if !ok {
			return nil, &errors.UnknownValueError{Attribute: h.Attribute(), Value: rec.Values[col], RecordID: rec.ID}
		}
		counts[code]++
	}

	row := make([]float64, h.Height()+1)
	domain := len(h.Domain())
	if domain <= 1 || ds.Size() == 0 {
		return row, nil
	}
	// integer numerators keep equal distributions at bit-identical scores
	for level := range row {
		var widened int64
		for code, n := range counts {
			widened += int64(n) * int64(h.Leaves(code, level)-1)
		}
		row[level] = float64(widened) / (float64(domain-1) * float64(ds.Size()))
	}
	return row, nil
}
