package privacy

import (
	"math"
	"sort"

	"github.com/inferloop/tabanon/pkg/errors"
)

// SuppressionPlan is the outcome of making one partition compliant
type SuppressionPlan struct {
	// Suppressed holds the removed classes in removal order
	Suppressed []*EquivalenceClass
	// Records is the number of suppressed records
	Records int
	// Remaining holds the classes kept in the release
	Remaining []*EquivalenceClass
}

// Positions returns the row positions of every suppressed record in
// ascending order.
func (p *SuppressionPlan) Positions() []int {
	positions := make([]int, 0, p.Records)
	for _, class := range p.Suppressed {
		positions = append(positions, class.Members...)
	}
	sort.Ints(positions)
	return positions
}

// SuppressionPlanner removes whole violating classes, smallest first, until
// the partition is compliant or the limit is exhausted.
type SuppressionPlanner struct {
	checker *Checker
	limit   float64
}

// NewSuppressionPlanner creates a planner allowing at most limit (a fraction
// in [0,1]) of the records to be suppressed.
func NewSuppressionPlanner(checker *Checker, limit float64) (*SuppressionPlanner, error) {
	if limit < 0 || limit > 1 || math.IsNaN(limit) {
		return nil, errors.NewConfigurationError(errors.CodeInvalidSuppression,
			"suppression limit must be within [0, 1]")
	}
	return &SuppressionPlanner{checker: checker, limit: limit}, nil
}

// Limit returns the configured suppression fraction
func (s *SuppressionPlanner) Limit() float64 {
	return s.limit
}

// Budget returns the largest number of records that may be suppressed out of
// total.
func (s *SuppressionPlanner) Budget(total int) int {
	return int(math.Floor(s.limit*float64(total) + 1e-9))
}

// Plan suppresses the violating classes of partition. Every model judges a
// class on its own members, so removing one class never changes the verdict
// on another: the violating classes are exactly the ones that must go, and
// the plan fails fast when their total size exceeds the budget.
func (s *SuppressionPlanner) Plan(partition *Partition, violations []Violation) (*SuppressionPlan, error) {
	budget := s.Budget(partition.Records)

	required := 0
	for _, v := range violations {
		required += v.Class.Size()
	}
	if required > budget {
		return nil, &errors.SuppressionBudgetExceededError{
			Node:     partition.Node.String(),
			Required: required,
			Allowed:  budget,
			Records:  partition.Records,
		}
	}

	order := make([]*EquivalenceClass, len(violations))
	for i, v := range violations {
		order[i] = v.Class
	}
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Size() != order[j].Size() {
			return order[i].Size() < order[j].Size()
		}
		return order[i].ID < order[j].ID
	})

	removed := make(map[int]bool, len(order))
	plan := &SuppressionPlan{}
	for _, class := range order {
		removed[class.ID] = true
		plan.Suppressed = append(plan.Suppressed, class)
		plan.Records += class.Size()
	}
	for _, class := range partition.Classes {
		if !removed[class.ID] {
			plan.Remaining = append(plan.Remaining, class)
		}
	}

	if !s.checker.IsCompliant(plan.Remaining) {
		return nil, errors.NewInternalError("suppression left violating classes at node " + partition.Node.String())
	}
	return plan, nil
}
