package privacy

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/tabanon/internal/quality"
	"github.com/inferloop/tabanon/internal/testutil"
	"github.com/inferloop/tabanon/pkg/errors"
)

func TestConfigurationValidate(t *testing.T) {
	fx := testutil.CensusFixture(t)

	valid := Configuration{
		Models:           []Model{KAnonymity{K: 2}, EntropyLDiversity{Attribute: "disease", L: 2}},
		SuppressionLimit: 0.1,
		SuppressionMode:  SuppressionRedact,
		Metric:           quality.DefaultMetricConfig(),
	}
	assert.NoError(t, valid.Validate(fx.Dataset))

	invalid := Configuration{
		Models:           []Model{KAnonymity{K: 0}, EntropyLDiversity{Attribute: "age", L: 2}},
		SuppressionLimit: 1.2,
		SuppressionMode:  "shred",
		Metric: quality.MetricConfig{
			Kind:        quality.KindHeight,
			Aggregation: quality.AggregationWeightedSum,
			Weights:     map[string]float64{"age": -1},
		},
	}
	err := invalid.Validate(fx.Dataset)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))

	var ve *errors.ValidationErrors
	require.True(t, stderrors.As(err, &ve))
	assert.Len(t, ve.Errors, 5)
	testutil.AssertValidationErrors(t, err, "privacy_models[0]", "privacy_models[1]",
		"suppression_limit", "suppression_mode", "metric.weights.age")
}

func TestConfigurationRequiresModels(t *testing.T) {
	fx := testutil.CensusFixture(t)
	cfg := Configuration{}
	err := cfg.Validate(fx.Dataset)
	testutil.AssertValidationErrors(t, err, "privacy_models")
}
