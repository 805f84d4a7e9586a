// Package risk estimates re-identification risk of a released dataset under
// the wildcard sample model: a record is as identifiable as the number of
// released records that could be it.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// Family selects how a sample match count becomes a probability
type Family string

const (
	// FamilySample uses 1/f for f matching released records
	FamilySample Family = "sample"
	// FamilyPopulation uses 1/F with F = ceil(f/π)
	FamilyPopulation Family = "population"
	// FamilyBenedettiFranconi is the individual risk estimator with uniform weights
	FamilyBenedettiFranconi Family = "benedetti_franconi"
)

// Config configures risk estimation
type Config struct {
	Estimator Family `json:"estimator" yaml:"estimator" mapstructure:"estimator"`
	// SamplingFraction is π, the share of the population in the release
	SamplingFraction float64 `json:"sampling_fraction" yaml:"sampling_fraction" mapstructure:"sampling_fraction"`
	Threshold        float64 `json:"threshold" yaml:"threshold" mapstructure:"threshold"`
}

// DefaultConfig returns the sample estimator over a full release
func DefaultConfig() *Config {
	return &Config{
		Estimator:        constants.DefaultRiskEstimator,
		SamplingFraction: constants.DefaultSamplingFraction,
		Threshold:        constants.DefaultRiskThreshold,
	}
}

// Validate checks the risk settings
func (c *Config) Validate() error {
	ve := errors.NewValidationErrors()
	switch c.Estimator {
	case FamilySample, FamilyPopulation, FamilyBenedettiFranconi:
	default:
		ve.Add("risk.estimator", errors.CodeInvalidEstimator, "unknown estimator family", string(c.Estimator))
	}
	if !(c.SamplingFraction > 0 && c.SamplingFraction <= 1) {
		ve.Add("risk.sampling_fraction", errors.CodeInvalidEstimator, "must be within (0, 1]", c.SamplingFraction)
	}
	if !(c.Threshold >= 0 && c.Threshold <= 1) {
		ve.Add("risk.threshold", errors.CodeInvalidEstimator, "must be within [0, 1]", c.Threshold)
	}
	return ve.ErrOrNil()
}

// Estimator computes per-record risks
type Estimator struct {
	config *Config
	logger *logrus.Logger
}

// NewEstimator creates an estimator
func NewEstimator(config *Config, logger *logrus.Logger) (*Estimator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Estimator{config: config, logger: logger}, nil
}

// Estimate assigns a risk to every record of a released dataset, using its
// quasi-identifier columns. A "*" value matches any value.
func (e *Estimator) Estimate(ds *models.Dataset) (*Assessment, error) {
	qis := ds.QuasiIdentifiers()
	if len(qis) == 0 {
		return nil, errors.NewValidationError(errors.CodeInvalidSchema, "released dataset has no quasi-identifier")
	}
	start := time.Now()

	cols := make([]int, len(qis))
	for i, qi := range qis {
		cols[i], _ = ds.Column(qi)
	}

	// group identical tuples, then count wildcard matches between groups
	type group struct {
		values []string
		count  int
		f      int
	}
	var groups []*group
	index := make(map[string]int)
	records := ds.Records()
	membership := make([]int, len(records))
	for pos, rec := range records {
		values := make([]string, len(cols))
		for i, col := range cols {
			values[i] = rec.Values[col]
		}
		key := fmt.Sprintf("%q", values)
		id, ok := index[key]
		if !ok {
			id = len(groups)
			index[key] = id
			groups = append(groups, &group{values: values})
		}
		groups[id].count++
		membership[pos] = id
	}
	// two distinct tuples without "*" never match, so only wildcard groups
	// are compared with the others
	for _, g := range groups {
		if !hasWildcard(g.values) {
			g.f = g.count
		}
	}
	for _, w := range groups {
		if !hasWildcard(w.values) {
			continue
		}
		for _, other := range groups {
			if !matches(w.values, other.values) {
				continue
			}
			w.f += other.count
			if !hasWildcard(other.values) {
				other.f += w.count
			}
		}
	}

	a := &Assessment{
		Estimator: e.config.Estimator,
		Threshold: e.config.Threshold,
		RecordIDs: make([]int, len(records)),
		Risks:     make([]float64, len(records)),
	}
	for pos, rec := range records {
		a.RecordIDs[pos] = rec.ID
		a.Risks[pos] = e.probability(groups[membership[pos]].f)
	}

	e.logger.WithFields(logrus.Fields{
		"records":   len(records),
		"groups":    len(groups),
		"estimator": e.config.Estimator,
		"elapsed":   time.Since(start),
	}).Debug("Estimated re-identification risk")
	return a, nil
}

// probability converts a match count f >= 1 into a risk in [0,1]
func (e *Estimator) probability(f int) float64 {
	pi := e.config.SamplingFraction
	switch e.config.Estimator {
	case FamilyPopulation:
		return 1 / math.Ceil(float64(f)/pi)
	case FamilyBenedettiFranconi:
		if pi >= 1 {
			return 1 / float64(f)
		}
		odds := pi / (1 - pi)
		var r float64
		switch f {
		case 1:
			r = odds * math.Log(1/pi)
		case 2:
			r = odds - odds*odds*math.Log(1/pi)
		default:
			r = pi / (float64(f) - (1 - pi))
		}
		return math.Min(1, math.Max(0, r))
	default:
		return 1 / float64(f)
	}
}

func hasWildcard(values []string) bool {
	for _, v := range values {
		if v == constants.WildcardMarker {
			return true
		}
	}
	return false
}

func matches(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] && a[i] != constants.WildcardMarker && b[i] != constants.WildcardMarker {
			return false
		}
	}
	return true
}

// Assessment holds the risk of every released record
type Assessment struct {
	Estimator Family
	Threshold float64
	RecordIDs []int
	Risks     []float64
}

// RecordsAtRisk counts records whose risk exceeds threshold
func (a *Assessment) RecordsAtRisk(threshold float64) int {
	n := 0
	for _, r := range a.Risks {
		if r > threshold {
			n++
		}
	}
	return n
}

// HighestRisk returns the largest record risk, 0 for an empty release
func (a *Assessment) HighestRisk() float64 {
	if len(a.Risks) == 0 {
		return 0
	}
	return floats.Max(a.Risks)
}

// AverageRisk returns the mean record risk, 0 for an empty release
func (a *Assessment) AverageRisk() float64 {
	if len(a.Risks) == 0 {
		return 0
	}
	return stat.Mean(a.Risks, nil)
}

// Summary condenses the assessment at the configured threshold
func (a *Assessment) Summary() *Summary {
	s := &Summary{
		Records:       len(a.Risks),
		RecordsAtRisk: a.RecordsAtRisk(a.Threshold),
		HighestRisk:   a.HighestRisk(),
		AverageRisk:   a.AverageRisk(),
		Threshold:     a.Threshold,
		Estimator:     a.Estimator,
	}
	if s.Records > 0 {
		s.RecordsAtRiskFraction = float64(s.RecordsAtRisk) / float64(s.Records)
	}
	return s
}

// Summary is the reportable outcome of a risk assessment
type Summary struct {
	Records               int     `json:"records"`
	RecordsAtRisk         int     `json:"records_at_risk"`
	RecordsAtRiskFraction float64 `json:"records_at_risk_fraction"`
	HighestRisk           float64 `json:"highest_risk"`
	AverageRisk           float64 `json:"average_risk"`
	Threshold             float64 `json:"threshold"`
	Estimator             Family  `json:"estimator"`
}
