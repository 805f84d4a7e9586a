// Package search finds the least lossy lattice node that satisfies every
// privacy model, directly or by suppressing whole equivalence classes.
package search

import (
	"context"
	stderrors "errors"
	"runtime"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/internal/lattice"
	"github.com/inferloop/tabanon/internal/privacy"
	"github.com/inferloop/tabanon/internal/quality"
	"github.com/inferloop/tabanon/pkg/errors"
)

// Config configures the search
type Config struct {
	// Workers bounds how many nodes of one level are evaluated concurrently
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns one worker per usable CPU
func DefaultConfig() *Config {
	return &Config{Workers: runtime.GOMAXPROCS(0)}
}

// Problem bundles the read-only inputs of one search
type Problem struct {
	Lattice    *lattice.Lattice
	Classifier *privacy.Classifier
	Checker    *privacy.Checker
	Planner    *privacy.SuppressionPlanner
	Metric     quality.Metric
}

func (p *Problem) validate() error {
	if p == nil || p.Lattice == nil || p.Classifier == nil || p.Checker == nil || p.Planner == nil || p.Metric == nil {
		return errors.NewConfigurationError(errors.CodeInvalidInput, "search problem is incomplete")
	}
	if p.Lattice.Dimensions() != len(p.Classifier.Attributes()) {
		return errors.NewConfigurationError(errors.CodeInvalidInput,
			"lattice and classifier disagree on the quasi-identifiers")
	}
	return nil
}

// Result is the winning node of a search
type Result struct {
	Node lattice.Node
	Loss float64
	// Suppressed holds the row positions of suppressed records, ascending
	Suppressed []int
	Stats      Stats
}

// Stats summarizes the work done by one search
type Stats struct {
	Evaluated  int           `json:"evaluated"`
	Inferred   int           `json:"inferred"`
	Pruned     int           `json:"pruned"`
	Rejected   int           `json:"rejected"`
	Candidates int           `json:"candidates"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Searcher runs lattice searches
type Searcher struct {
	config   *Config
	logger   *logrus.Logger
	observer Observer
}

// NewSearcher creates a searcher
func NewSearcher(config *Config, logger *logrus.Logger) *Searcher {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers < 1 {
		config.Workers = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Searcher{
		config: config,
		logger: logger,
	}
}

// SetObserver registers a hook called once per visited node
func (s *Searcher) SetObserver(observer Observer) {
	s.observer = observer
}

// Search walks the lattice level by level from the bottom node. A node whose
// loss exceeds the best candidate is pruned with everything above it. A node
// above one that is compliant without suppression is inferred compliant and
// never beats it, so it is neither classified nor expanded. The result is the
// minimum under (loss, suppressed records, level vector), identical to an
// exhaustive scan.
func (s *Searcher) Search(ctx context.Context, p *Problem) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	s.logger.WithFields(logrus.Fields{
		"attributes":   p.Lattice.Attributes(),
		"heights":      p.Lattice.Heights(),
		"lattice_size": p.Lattice.Size(),
		"workers":      s.config.Workers,
		"metric":       p.Metric.Name(),
	}).Info("Starting lattice search")

	var (
		stats    Stats
		acc      = &accumulator{}
		effort   bestEffort
		verdicts = make(map[string]Verdict)
		frontier = []lattice.Node{p.Lattice.Bottom()}
	)

	for level := 0; len(frontier) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return nil, &errors.SearchCancelledError{Evaluated: stats.Evaluated, Cause: err}
		}

		var pending []lattice.Node
		for _, node := range frontier {
			if s.dominated(p.Lattice, node, verdicts) {
				verdicts[node.Key()] = VerdictInferred
				stats.Inferred++
				s.notify(Evaluation{Node: node, Verdict: VerdictInferred, Loss: p.Metric.Loss(node)})
				continue
			}
			pending = append(pending, node)
		}

		outcomes, err := s.evaluateLevel(ctx, p, pending, acc)
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				return nil, &errors.SearchCancelledError{Evaluated: stats.Evaluated, Cause: err}
			}
			return nil, err
		}

		next := make(map[string]lattice.Node)
		for _, out := range outcomes {
			verdicts[out.Node.Key()] = out.Verdict
			s.notify(out.Evaluation)

			switch out.Verdict {
			case VerdictPruned:
				stats.Pruned++
				continue
			case VerdictRejected:
				stats.Evaluated++
				stats.Rejected++
				effort.consider(out)
			case VerdictCompliant:
				stats.Evaluated++
				stats.Candidates++
				continue
			case VerdictSuppressed:
				stats.Evaluated++
				stats.Candidates++
			}
			for _, succ := range p.Lattice.Successors(out.Node) {
				next[succ.Key()] = succ
			}
		}

		frontier = make([]lattice.Node, 0, len(next))
		for _, node := range next {
			frontier = append(frontier, node)
		}
		sort.Slice(frontier, func(i, j int) bool {
			return frontier[i].Compare(frontier[j]) < 0
		})

		s.logger.WithFields(logrus.Fields{
			"lattice_level": level,
			"evaluated":     len(outcomes),
			"next":          len(frontier),
		}).Debug("Lattice level done")
	}

	stats.Elapsed = time.Since(start)
	best := acc.result()
	if best == nil {
		err := effort.err(p, stats)
		s.logger.WithFields(logrus.Fields{
			"evaluated": stats.Evaluated,
			"elapsed":   stats.Elapsed,
		}).Warn("No feasible transformation")
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"node":       best.node.String(),
		"loss":       best.loss,
		"suppressed": len(best.suppressed),
		"evaluated":  stats.Evaluated,
		"inferred":   stats.Inferred,
		"pruned":     stats.Pruned,
		"elapsed":    stats.Elapsed,
	}).Info("Lattice search finished")

	return &Result{
		Node:       best.node,
		Loss:       best.loss,
		Suppressed: best.suppressed,
		Stats:      stats,
	}, nil
}

// dominated reports whether a predecessor of node is compliant without
// suppression, directly or by inference.
func (s *Searcher) dominated(l *lattice.Lattice, node lattice.Node, verdicts map[string]Verdict) bool {
	for _, pred := range l.Predecessors(node) {
		switch verdicts[pred.Key()] {
		case VerdictCompliant, VerdictInferred:
			return true
		}
	}
	return false
}

func (s *Searcher) notify(ev Evaluation) {
	if s.observer != nil {
		s.observer.NodeEvaluated(ev)
	}
}

// evaluate classifies one node and decides its verdict
func (s *Searcher) evaluate(p *Problem, node lattice.Node, acc *accumulator) (outcome, error) {
	out := outcome{Evaluation: Evaluation{Node: node, Loss: p.Metric.Loss(node)}}

	if acc.prunes(out.Loss) {
		out.Verdict = VerdictPruned
		return out, nil
	}

	partition := p.Classifier.Classify(node)
	violations := p.Checker.Violations(partition.Classes)
	if len(violations) == 0 {
		out.Verdict = VerdictCompliant
		acc.offer(&candidate{node: node, loss: out.Loss})
		return out, nil
	}

	plan, err := p.Planner.Plan(partition, violations)
	if err != nil {
		if !stderrors.Is(err, errors.ErrSuppressionBudgetExceeded) {
			return out, err
		}
		s.logger.WithFields(logrus.Fields{
			"node":  node.String(),
			"error": err.Error(),
		}).Debug("Node rejected")
		out.Verdict = VerdictRejected
		out.violations = violations
		for _, v := range violations {
			out.violatingRecords += v.Class.Size()
		}
		return out, nil
	}

	out.Verdict = VerdictSuppressed
	out.Suppressed = plan.Records
	acc.offer(&candidate{node: node, loss: out.Loss, suppressed: plan.Positions()})
	return out, nil
}

// bestEffort remembers the rejected node leaving the fewest violating
// records, then the fewest violating classes
type bestEffort struct {
	found bool
	out   outcome
}

func (b *bestEffort) consider(out outcome) {
	switch {
	case !b.found:
	case out.violatingRecords != b.out.violatingRecords:
		if out.violatingRecords > b.out.violatingRecords {
			return
		}
	case len(out.violations) != len(b.out.violations):
		if len(out.violations) > len(b.out.violations) {
			return
		}
	case out.Node.Compare(b.out.Node) >= 0:
		return
	}
	b.found = true
	b.out = out
}

func (b *bestEffort) err(p *Problem, stats Stats) error {
	e := &errors.NoFeasibleTransformationError{
		Evaluated:  stats.Evaluated,
		Attributes: p.Lattice.Attributes(),
	}
	if !b.found {
		return e
	}
	e.BestEffort = []int(b.out.Node.Clone())
	e.ViolatingClasses = len(b.out.violations)
	e.ViolatingRecords = b.out.violatingRecords
	e.Failures = make(map[string]int)
	for _, v := range b.out.violations {
		for _, f := range v.Failures {
			e.Failures[f.Model.String()]++
		}
	}
	return e
}
