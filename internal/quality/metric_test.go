package quality

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/tabanon/internal/lattice"
	"github.com/inferloop/tabanon/internal/testutil"
	"github.com/inferloop/tabanon/pkg/errors"
)

func TestHeightMetric(t *testing.T) {
	fx := testutil.CensusFixture(t)
	qis := fx.Dataset.QuasiIdentifiers()
	m, err := NewMetric(DefaultMetricConfig(), fx.Dataset, fx.Index, qis)
	require.NoError(t, err)

	assert.Equal(t, "height", m.Name())
	assert.Equal(t, 0.0, m.Loss(lattice.Node{0, 0, 0}))
	// age height 3, sex height 1, zip height 5
	testutil.AssertFloatEquals(t, 1.0/3+1+2.0/5, m.Loss(lattice.Node{1, 1, 2}), 1e-12)
	testutil.AssertFloatEquals(t, 3.0, m.Loss(lattice.Node{3, 1, 5}), 1e-12)
}

func TestWeightedHeightMetric(t *testing.T) {
	fx := testutil.CensusFixture(t)
	cfg := MetricConfig{
		Kind:        KindHeight,
		Aggregation: AggregationWeightedSum,
		Weights:     map[string]float64{"sex": 0, "zip": 2},
	}
	m, err := NewMetric(cfg, fx.Dataset, fx.Index, fx.Dataset.QuasiIdentifiers())
	require.NoError(t, err)
	testutil.AssertFloatEquals(t, 1.0+0+2, m.Loss(lattice.Node{3, 1, 5}), 1e-12)
}

func TestLossMetric(t *testing.T) {
	fx := testutil.NineAndOneFixture(t)
	m, err := NewMetric(MetricConfig{Kind: KindLoss}, fx.Dataset, fx.Index, []string{"zip"})
	require.NoError(t, err)
	assert.Equal(t, "loss", m.Name())
	assert.Equal(t, 0.0, m.Loss(lattice.Node{0}))
	// every record generalizes to the label covering all 10 domain values
	assert.Equal(t, 1.0, m.Loss(lattice.Node{1}))
}

func TestLossMetricIsStableAcrossBuilds(t *testing.T) {
	fx := testutil.MirroredFixture(t, 11, 150, 97)
	qis := fx.Dataset.QuasiIdentifiers()

	first, err := NewMetric(MetricConfig{Kind: KindLoss}, fx.Dataset, fx.Index, qis)
	require.NoError(t, err)
	want := first.Loss(lattice.Node{1, 0})
	require.Greater(t, want, 0.0)

	for i := 0; i < 100; i++ {
		m, err := NewMetric(MetricConfig{Kind: KindLoss}, fx.Dataset, fx.Index, qis)
		require.NoError(t, err)
		assert.Equal(t, want, m.Loss(lattice.Node{1, 0}), "build %d", i)
		assert.Equal(t, m.Loss(lattice.Node{1, 0}), m.Loss(lattice.Node{0, 1}), "build %d", i)
		assert.Equal(t, m.Loss(lattice.Node{2, 3}), m.Loss(lattice.Node{3, 2}), "build %d", i)
	}
}

func TestMetricsAreMonotonic(t *testing.T) {
	fx := testutil.RandomFixture(t, 7, 50, []int{8, 5, 3}, 2)
	qis := fx.Dataset.QuasiIdentifiers()
	heights, err := fx.Index.Heights(qis)
	require.NoError(t, err)
	lat, err := lattice.New(qis, heights)
	require.NoError(t, err)

	for _, cfg := range []MetricConfig{
		DefaultMetricConfig(),
		{Kind: KindLoss},
		{Kind: KindLoss, Aggregation: AggregationWeightedSum, Weights: map[string]float64{"q0": 3, "q2": 0.1}},
	} {
		m, err := NewMetric(cfg, fx.Dataset, fx.Index, qis)
		require.NoError(t, err)
		lat.Walk(func(node lattice.Node) bool {
			loss := m.Loss(node)
			assert.GreaterOrEqual(t, loss, 0.0)
			for _, succ := range lat.Successors(node) {
				assert.LessOrEqual(t, loss, m.Loss(succ), "%s -> %s (%s)", node, succ, m.Name())
			}
			return true
		})
	}
}

func TestMetricConfigValidate(t *testing.T) {
	qis := []string{"age", "zip"}
	assert.NoError(t, DefaultMetricConfig().Validate(qis))

	err := MetricConfig{Kind: "entropy", Aggregation: "max"}.Validate(qis)
	testutil.AssertValidationErrors(t, err, "metric.kind", "metric.aggregation")

	err = MetricConfig{Weights: map[string]float64{"age": -2, "salary": 1}}.Validate(qis)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))
	testutil.AssertValidationErrors(t, err, "metric.weights.age", "metric.weights.salary")
}
