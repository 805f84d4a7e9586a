package search

import (
	"time"

	"github.com/inferloop/tabanon/internal/lattice"
	"github.com/inferloop/tabanon/internal/privacy"
)

// Verdict is what the search concluded about a node
type Verdict string

const (
	// VerdictCompliant means every class satisfies every model
	VerdictCompliant Verdict = "compliant"
	// VerdictSuppressed means compliant after suppressing violating classes
	VerdictSuppressed Verdict = "suppressed"
	// VerdictRejected means the suppression limit cannot cover the violations
	VerdictRejected Verdict = "rejected"
	// VerdictInferred means compliant by a predecessor, never classified
	VerdictInferred Verdict = "inferred"
	// VerdictPruned means the node is lossier than the best candidate
	VerdictPruned Verdict = "pruned"
)

// Evaluation reports one visited node
type Evaluation struct {
	Node       lattice.Node
	Verdict    Verdict
	Loss       float64
	Suppressed int
	Duration   time.Duration
}

// Observer receives every evaluation. Calls come from the search goroutine,
// one level at a time, in node order.
type Observer interface {
	NodeEvaluated(ev Evaluation)
}

type outcome struct {
	Evaluation

	violations       []privacy.Violation
	violatingRecords int
}
