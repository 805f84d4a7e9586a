package privacy

import (
	"github.com/inferloop/tabanon/pkg/models"
)

// Model is a privacy predicate over a single equivalence class. The set of
// implementations is closed: KAnonymity, EntropyLDiversity, DistinctLDiversity
// and RecursiveCLDiversity. Every one of them judges a class on its own
// members only and is monotonic under generalization.
type Model interface {
	// String names the model and its parameters, e.g. "k-anonymity(k=5)"
	String() string

	validate(ds *models.Dataset) error
	evaluate(members []int, columns sensitiveColumns) (Failure, bool)
}

// Failure describes how one class misses one model. Measured and Required
// are in the model's own unit (records, nats, distinct values, counts).
type Failure struct {
	Model    Model
	Measured float64
	Required float64
}

// sensitiveColumns maps a sensitive attribute to per-position value codes
type sensitiveColumns map[string][]int32

func (s sensitiveColumns) histogram(attribute string, members []int) map[int32]int {
	column := s[attribute]
	counts := make(map[int32]int)
	for _, pos := range members {
		counts[column[pos]]++
	}
	return counts
}
