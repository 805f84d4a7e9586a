// Package anonymizer runs the full pipeline over one dataset: validation,
// lattice search and materialization of the released table.
package anonymizer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/internal/hierarchy"
	"github.com/inferloop/tabanon/internal/lattice"
	"github.com/inferloop/tabanon/internal/privacy"
	"github.com/inferloop/tabanon/internal/quality"
	"github.com/inferloop/tabanon/internal/search"
	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/models"
)

// Result is an anonymized release and how it was obtained
type Result struct {
	RunID string `json:"run_id"`
	// Node holds one generalization level per quasi-identifier, in Attributes order
	Node            lattice.Node            `json:"node"`
	Attributes      []string                `json:"attributes"`
	Levels          map[string]int          `json:"levels"`
	Loss            float64                 `json:"loss"`
	Metric          string                  `json:"metric"`
	Suppressed      []int                   `json:"suppressed"`
	SuppressionMode privacy.SuppressionMode `json:"suppression_mode"`
	Records         int                     `json:"records"`
	Output          *models.Dataset         `json:"-"`
	Stats           search.Stats            `json:"stats"`
	StartedAt       time.Time               `json:"started_at"`
	CompletedAt     time.Time               `json:"completed_at"`
}

// SuppressedFraction returns the share of input records suppressed
func (r *Result) SuppressedFraction() float64 {
	if r.Records == 0 {
		return 0
	}
	return float64(len(r.Suppressed)) / float64(r.Records)
}

// Anonymizer runs searches and materializes their winners
type Anonymizer struct {
	searchConfig *search.Config
	logger       *logrus.Logger
	observer     search.Observer
}

// NewAnonymizer creates an anonymizer
func NewAnonymizer(searchConfig *search.Config, logger *logrus.Logger) *Anonymizer {
	if searchConfig == nil {
		searchConfig = search.DefaultConfig()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Anonymizer{
		searchConfig: searchConfig,
		logger:       logger,
	}
}

// SetObserver forwards every node evaluation of later runs to observer
func (a *Anonymizer) SetObserver(observer search.Observer) {
	a.observer = observer
}

// Anonymize finds the least lossy compliant generalization of ds and returns
// the released table. Identifier columns are dropped; suppressed records are
// redacted or omitted according to cfg.
func (a *Anonymizer) Anonymize(ctx context.Context, ds *models.Dataset, idx *hierarchy.Index, cfg *privacy.Configuration) (*Result, error) {
	runID := uuid.New().String()
	logger := a.logger.WithField("run_id", runID)
	started := time.Now()

	if err := cfg.Validate(ds); err != nil {
		logger.WithError(err).Error("Invalid anonymization configuration")
		return nil, err
	}

	p, err := NewProblem(ds, idx, cfg)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"records":           ds.Size(),
		"quasi_identifiers": p.Lattice.Attributes(),
		"models":            len(cfg.Models),
		"suppression_limit": cfg.SuppressionLimit,
	}).Info("Starting anonymization")

	searcher := search.NewSearcher(a.searchConfig, a.logger)
	if a.observer != nil {
		searcher.SetObserver(a.observer)
	}
	found, err := searcher.Search(ctx, p)
	if err != nil {
		logger.WithError(err).Error("Anonymization failed")
		return nil, err
	}

	mode := cfg.SuppressionMode
	if mode == "" {
		mode = constants.DefaultSuppressionMode
	}
	output, err := Materialize(ds, p.Classifier, found.Node, found.Suppressed, mode)
	if err != nil {
		return nil, err
	}

	attrs := p.Lattice.Attributes()
	levels := make(map[string]int, len(attrs))
	for i, attr := range attrs {
		levels[attr] = found.Node[i]
	}
	suppressed := make([]int, len(found.Suppressed))
	for i, pos := range found.Suppressed {
		suppressed[i] = p.Classifier.RecordID(pos)
	}

	res := &Result{
		RunID:           runID,
		Node:            found.Node,
		Attributes:      attrs,
		Levels:          levels,
		Loss:            found.Loss,
		Metric:          p.Metric.Name(),
		Suppressed:      suppressed,
		SuppressionMode: mode,
		Records:         ds.Size(),
		Output:          output,
		Stats:           found.Stats,
		StartedAt:       started,
		CompletedAt:     time.Now(),
	}

	logger.WithFields(logrus.Fields{
		"node":       found.Node.String(),
		"loss":       found.Loss,
		"suppressed": len(suppressed),
		"released":   output.Size(),
		"duration":   res.CompletedAt.Sub(started),
	}).Info("Anonymization completed")
	return res, nil
}

// NewProblem prepares the search inputs for ds: classifier, checker,
// suppression planner, lattice and loss metric over its quasi-identifiers.
func NewProblem(ds *models.Dataset, idx *hierarchy.Index, cfg *privacy.Configuration) (*search.Problem, error) {
	qis := ds.QuasiIdentifiers()

	classifier, err := privacy.NewClassifier(ds, idx, qis)
	if err != nil {
		return nil, err
	}
	checker, err := privacy.NewChecker(ds, cfg.Models)
	if err != nil {
		return nil, err
	}
	planner, err := privacy.NewSuppressionPlanner(checker, cfg.SuppressionLimit)
	if err != nil {
		return nil, err
	}
	lat, err := NewLattice(ds, idx)
	if err != nil {
		return nil, err
	}
	metric, err := quality.NewMetric(cfg.Metric, ds, idx, qis)
	if err != nil {
		return nil, err
	}

	return &search.Problem{
		Lattice:    lat,
		Classifier: classifier,
		Checker:    checker,
		Planner:    planner,
		Metric:     metric,
	}, nil
}

// NewLattice builds the generalization lattice of the quasi-identifiers of ds
func NewLattice(ds *models.Dataset, idx *hierarchy.Index) (*lattice.Lattice, error) {
	qis := ds.QuasiIdentifiers()
	heights, err := idx.Heights(qis)
	if err != nil {
		return nil, err
	}
	return lattice.New(qis, heights)
}
