package privacy

import (
	"fmt"
	"math"

	"github.com/inferloop/tabanon/internal/quality"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// SuppressionMode decides how suppressed records appear in the release
type SuppressionMode string

const (
	// SuppressionRedact keeps the row with every quasi-identifier replaced by "*"
	SuppressionRedact SuppressionMode = "redact"
	// SuppressionOmit drops the row
	SuppressionOmit SuppressionMode = "omit"
)

// Configuration is what a search needs besides the data and hierarchies
type Configuration struct {
	Models           []Model
	SuppressionLimit float64
	SuppressionMode  SuppressionMode
	Metric           quality.MetricConfig
}

// Validate reports every configuration problem against ds at once
func (c *Configuration) Validate(ds *models.Dataset) error {
	ve := errors.NewValidationErrors()

	if len(c.Models) == 0 {
		ve.Add("privacy_models", errors.CodeInvalidPrivacyModel, "at least one privacy model is required", nil)
	}
	for i, m := range c.Models {
		field := fmt.Sprintf("privacy_models[%d]", i)
		if m == nil {
			ve.Add(field, errors.CodeInvalidPrivacyModel, "privacy model is nil", nil)
			continue
		}
		if err := m.validate(ds); err != nil {
			ve.Add(field, errors.CodeInvalidPrivacyModel, err.Error(), m.String())
		}
	}

	if c.SuppressionLimit < 0 || c.SuppressionLimit > 1 || math.IsNaN(c.SuppressionLimit) {
		ve.Add("suppression_limit", errors.CodeInvalidSuppression, "must be within [0, 1]", c.SuppressionLimit)
	}
	switch c.SuppressionMode {
	case SuppressionRedact, SuppressionOmit, "":
	default:
		ve.Add("suppression_mode", errors.CodeInvalidSuppression, "must be redact or omit", string(c.SuppressionMode))
	}

	qis := ds.QuasiIdentifiers()
	if len(qis) == 0 {
		ve.Add("attributes", errors.CodeInvalidSchema, "dataset has no quasi-identifier", nil)
	}
	if err := c.Metric.Validate(qis); err != nil {
		if mve, ok := err.(*errors.ValidationErrors); ok {
			ve.Errors = append(ve.Errors, mve.Errors...)
		} else {
			ve.Add("metric", errors.CodeInvalidMetric, err.Error(), nil)
		}
	}

	return ve.ErrOrNil()
}
