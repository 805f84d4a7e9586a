package privacy

import (
	"fmt"
	"math"
	"sort"

	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// EntropyLDiversity requires the Shannon entropy (natural log) of the
// sensitive attribute's raw values within every class to be at least ln(L).
type EntropyLDiversity struct {
	Attribute string  `json:"attribute"`
	L         float64 `json:"l"`
}

func (m EntropyLDiversity) String() string {
	return fmt.Sprintf("entropy-l-diversity(%s, l=%g)", m.Attribute, m.L)
}

func (m EntropyLDiversity) validate(ds *models.Dataset) error {
	if m.L < 1 || math.IsNaN(m.L) || math.IsInf(m.L, 0) {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacyModel,
			fmt.Sprintf("l must be at least 1, got %v", m.L))
	}
	return validateSensitive(ds, m.Attribute)
}

func (m EntropyLDiversity) evaluate(members []int, columns sensitiveColumns) (Failure, bool) {
	entropy := Entropy(columns.histogram(m.Attribute, members), len(members))
	threshold := math.Log(m.L)
	if entropy >= threshold-constants.EntropyTolerance {
		return Failure{}, true
	}
	return Failure{Model: m, Measured: entropy, Required: threshold}, false
}

// Entropy returns -sum p ln p over a histogram of total observations
func Entropy[K comparable](counts map[K]int, total int) float64 {
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log(p)
	}
	return entropy
}

// DistinctLDiversity requires at least L distinct sensitive values per class
type DistinctLDiversity struct {
	Attribute string `json:"attribute"`
	L         int    `json:"l"`
}

func (m DistinctLDiversity) String() string {
	return fmt.Sprintf("distinct-l-diversity(%s, l=%d)", m.Attribute, m.L)
}

func (m DistinctLDiversity) validate(ds *models.Dataset) error {
	if m.L < 1 {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacyModel,
			fmt.Sprintf("l must be at least 1, got %d", m.L))
	}
	return validateSensitive(ds, m.Attribute)
}

func (m DistinctLDiversity) evaluate(members []int, columns sensitiveColumns) (Failure, bool) {
	distinct := len(columns.histogram(m.Attribute, members))
	if distinct >= m.L {
		return Failure{}, true
	}
	return Failure{Model: m, Measured: float64(distinct), Required: float64(m.L)}, false
}

// RecursiveCLDiversity requires r1 < C * (rL + ... + rm), where r1 >= r2 >= ...
// are the sensitive value counts of a class sorted in descending order.
type RecursiveCLDiversity struct {
	Attribute string  `json:"attribute"`
	C         float64 `json:"c"`
	L         int     `json:"l"`
}

func (m RecursiveCLDiversity) String() string {
	return fmt.Sprintf("recursive-(c,l)-diversity(%s, c=%g, l=%d)", m.Attribute, m.C, m.L)
}

func (m RecursiveCLDiversity) validate(ds *models.Dataset) error {
	if m.L < 2 {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacyModel,
			fmt.Sprintf("recursive diversity needs l of at least 2, got %d", m.L))
	}
	if m.C <= 0 || math.IsNaN(m.C) || math.IsInf(m.C, 0) {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacyModel,
			fmt.Sprintf("c must be positive, got %v", m.C))
	}
	return validateSensitive(ds, m.Attribute)
}

// evaluate reports Measured = r1 and Required = C * tail; the class fails
// when Measured >= Required.
func (m RecursiveCLDiversity) evaluate(members []int, columns sensitiveColumns) (Failure, bool) {
	hist := columns.histogram(m.Attribute, members)
	counts := make([]int, 0, len(hist))
	for _, c := range hist {
		counts = append(counts, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(counts)))

	tail := 0
	for i := m.L - 1; i < len(counts); i++ {
		tail += counts[i]
	}
	top := 0
	if len(counts) > 0 {
		top = counts[0]
	}
	required := m.C * float64(tail)
	if len(counts) >= m.L && float64(top) < required {
		return Failure{}, true
	}
	return Failure{Model: m, Measured: float64(top), Required: required}, false
}

func validateSensitive(ds *models.Dataset, attribute string) error {
	attr, ok := ds.Attribute(attribute)
	if !ok {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacyModel,
			fmt.Sprintf("sensitive attribute %q is not in the dataset", attribute))
	}
	if attr.Role != models.RoleSensitive {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacyModel,
			fmt.Sprintf("attribute %q is %s, diversity needs a sensitive attribute", attribute, attr.Role))
	}
	return nil
}
