package errors

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownValueError reports a raw value that was never registered in the
// hierarchy of its attribute. It is fatal: the data and the hierarchies
// disagree.
type UnknownValueError struct {
	Attribute string
	Value     string
	RecordID  int
}

func (e *UnknownValueError) Error() string {
	if e.RecordID >= 0 {
		return fmt.Sprintf("unknown value %q for attribute %q (record %d)", e.Value, e.Attribute, e.RecordID)
	}
	return fmt.Sprintf("unknown value %q for attribute %q", e.Value, e.Attribute)
}

func (e *UnknownValueError) Unwrap() error {
	return ErrUnknownValue
}

// NewUnknownValueError creates an UnknownValueError not tied to a record
func NewUnknownValueError(attribute, value string) *UnknownValueError {
	return &UnknownValueError{Attribute: attribute, Value: value, RecordID: -1}
}

// SuppressionBudgetExceededError means a node cannot be made compliant by
// removing whole equivalence classes within the suppression limit. The search
// recovers from it by rejecting the node.
type SuppressionBudgetExceededError struct {
	Node     string
	Required int
	Allowed  int
	Records  int
}

func (e *SuppressionBudgetExceededError) Error() string {
	return fmt.Sprintf("node %s needs at least %d of %d records suppressed, limit allows %d",
		e.Node, e.Required, e.Records, e.Allowed)
}

func (e *SuppressionBudgetExceededError) Unwrap() error {
	return ErrSuppressionBudgetExceeded
}

// NoFeasibleTransformationError means no node in the lattice satisfies the
// configuration. BestEffort is the rejected node that left the fewest records
// in violating classes, for diagnosis.
type NoFeasibleTransformationError struct {
	Evaluated        int
	Attributes       []string
	BestEffort       []int
	ViolatingClasses int
	ViolatingRecords int
	// Failures counts violating classes per privacy model at BestEffort
	Failures map[string]int
}

func (e *NoFeasibleTransformationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no feasible transformation among %d evaluated nodes", e.Evaluated)
	if e.BestEffort != nil {
		fmt.Fprintf(&b, "; best effort %v leaves %d violating classes (%d records)",
			e.BestEffort, e.ViolatingClasses, e.ViolatingRecords)
	}
	if len(e.Failures) > 0 {
		models := make([]string, 0, len(e.Failures))
		for m := range e.Failures {
			models = append(models, m)
		}
		sort.Strings(models)
		parts := make([]string, len(models))
		for i, m := range models {
			parts[i] = fmt.Sprintf("%s: %d", m, e.Failures[m])
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, ", "))
	}
	return b.String()
}

func (e *NoFeasibleTransformationError) Unwrap() error {
	return ErrNoFeasibleTransformation
}

// SearchCancelledError reports a search stopped by its context between node
// evaluations. It matches both ErrSearchCancelled and the context error.
type SearchCancelledError struct {
	Evaluated int
	Cause     error
}

func (e *SearchCancelledError) Error() string {
	return fmt.Sprintf("search cancelled after %d evaluated nodes: %v", e.Evaluated, e.Cause)
}

func (e *SearchCancelledError) Unwrap() []error {
	return []error{ErrSearchCancelled, e.Cause}
}
