package privacy

import (
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// Violation tags a class with every model it fails
type Violation struct {
	Class    *EquivalenceClass
	Failures []Failure
}

// Checker evaluates a fixed set of privacy models against partitions of one
// dataset. Sensitive columns are encoded once; a Checker is safe for
// concurrent use.
type Checker struct {
	models  []Model
	columns sensitiveColumns
}

// NewChecker validates every model against ds and prepares the sensitive
// columns they read.
func NewChecker(ds *models.Dataset, privacyModels []Model) (*Checker, error) {
	if len(privacyModels) == 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidPrivacyModel,
			"at least one privacy model is required")
	}

	columns := make(sensitiveColumns)
	for _, m := range privacyModels {
		if m == nil {
			return nil, errors.NewConfigurationError(errors.CodeInvalidPrivacyModel, "nil privacy model")
		}
		if err := m.validate(ds); err != nil {
			return nil, err
		}
		attr := sensitiveAttribute(m)
		if attr == "" {
			continue
		}
		if _, done := columns[attr]; done {
			continue
		}
		columns[attr] = encodeColumn(ds, attr)
	}

	return &Checker{
		models:  append([]Model(nil), privacyModels...),
		columns: columns,
	}, nil
}

// Models returns the configured models
func (c *Checker) Models() []Model {
	return c.models
}

// Check returns the failures of a single class, empty when it satisfies
// every model.
func (c *Checker) Check(class *EquivalenceClass) []Failure {
	var failures []Failure
	for _, m := range c.models {
		if f, ok := m.evaluate(class.Members, c.columns); !ok {
			failures = append(failures, f)
		}
	}
	return failures
}

// Violations returns the violating classes in their partition order
func (c *Checker) Violations(classes []*EquivalenceClass) []Violation {
	var violations []Violation
	for _, class := range classes {
		if failures := c.Check(class); len(failures) > 0 {
			violations = append(violations, Violation{Class: class, Failures: failures})
		}
	}
	return violations
}

// IsCompliant reports whether no class violates any model
func (c *Checker) IsCompliant(classes []*EquivalenceClass) bool {
	for _, class := range classes {
		if len(c.Check(class)) > 0 {
			return false
		}
	}
	return true
}

func sensitiveAttribute(m Model) string {
	switch v := m.(type) {
	case EntropyLDiversity:
		return v.Attribute
	case DistinctLDiversity:
		return v.Attribute
	case RecursiveCLDiversity:
		return v.Attribute
	}
	return ""
}

func encodeColumn(ds *models.Dataset, attribute string) []int32 {
	col, _ := ds.Column(attribute)
	records := ds.Records()
	codes := make([]int32, len(records))
	dictionary := make(map[string]int32)
	for pos, rec := range records {
		v := rec.Values[col]
		code, ok := dictionary[v]
		if !ok {
			code = int32(len(dictionary))
			dictionary[v] = code
		}
		codes[pos] = code
	}
	return codes
}
