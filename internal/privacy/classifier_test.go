package privacy

import (
	stderrors "errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/tabanon/internal/hierarchy"
	"github.com/inferloop/tabanon/internal/lattice"
	"github.com/inferloop/tabanon/internal/testutil"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

func censusClassifier(t *testing.T) (*Classifier, testutil.Fixture) {
	t.Helper()
	fx := testutil.CensusFixture(t)
	c, err := NewClassifier(fx.Dataset, fx.Index, fx.Dataset.QuasiIdentifiers())
	require.NoError(t, err)
	return c, fx
}

func TestClassifyPartitionsEveryRecord(t *testing.T) {
	c, fx := censusClassifier(t)
	heights, err := fx.Index.Heights(c.Attributes())
	require.NoError(t, err)
	lat, err := lattice.New(c.Attributes(), heights)
	require.NoError(t, err)

	lat.Walk(func(node lattice.Node) bool {
		p := c.Classify(node)
		var seen []int
		for _, class := range p.Classes {
			assert.NotEmpty(t, class.Members)
			seen = append(seen, class.Members...)
		}
		sort.Ints(seen)
		want := make([]int, fx.Dataset.Size())
		for i := range want {
			want[i] = i
		}
		assert.Equal(t, want, seen, "node %s", node)
		return true
	})
}

func TestClassifyGroupsByGeneralizedTuple(t *testing.T) {
	c, _ := censusClassifier(t)

	bottom := c.Classify(lattice.Node{0, 0, 0})
	// (34,female,81667) and (70,male,81931) appear twice
	assert.Len(t, bottom.Classes, 10)
	assert.Equal(t, []int{0, 4}, bottom.Classes[0].Members)
	assert.Equal(t, []string{"34", "female", "81667"}, bottom.Labels(bottom.Classes[0]))

	top := c.Classify(lattice.Node{3, 1, 5})
	require.Len(t, top.Classes, 1)
	assert.Equal(t, 12, top.Classes[0].Size())
	assert.Equal(t, []string{"*", "*", "*****"}, top.Labels(top.Classes[0]))
}

func TestClassifyIsDeterministic(t *testing.T) {
	c, _ := censusClassifier(t)
	node := lattice.Node{1, 0, 2}
	a := c.Classify(node)
	b := c.Classify(node)
	require.Equal(t, len(a.Classes), len(b.Classes))
	for i := range a.Classes {
		assert.Equal(t, a.Classes[i].Members, b.Classes[i].Members)
		assert.Equal(t, i, a.Classes[i].ID)
	}
}

func TestClassifierUnknownValue(t *testing.T) {
	attrs := []models.Attribute{{Name: "zip", Role: models.RoleQuasiIdentifier}}
	ds, err := models.NewDataset(attrs, [][]string{{"z0"}, {"z7"}})
	require.NoError(t, err)
	h, err := hierarchy.FromRows("zip", [][]string{{"z0", "*"}})
	require.NoError(t, err)
	idx, err := hierarchy.NewIndex(h)
	require.NoError(t, err)

	_, err = NewClassifier(ds, idx, []string{"zip"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrUnknownValue))

	var uv *errors.UnknownValueError
	require.True(t, stderrors.As(err, &uv))
	assert.Equal(t, "z7", uv.Value)
	assert.Equal(t, 1, uv.RecordID)
}

func TestClassifierMissingHierarchy(t *testing.T) {
	fx := testutil.SingletonFixture(t)
	_, err := NewClassifier(fx.Dataset, fx.Index, []string{"zip", "age"})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))
}

func TestPartitionRecordIDs(t *testing.T) {
	attrs := []models.Attribute{{Name: "zip", Role: models.RoleQuasiIdentifier}}
	ds, err := models.NewDatasetFromRecords(attrs, []models.Record{
		{ID: 100, Values: []string{"z1"}},
		{ID: 7, Values: []string{"z0"}},
		{ID: 42, Values: []string{"z1"}},
	})
	require.NoError(t, err)
	h, err := hierarchy.FromRows("zip", [][]string{{"z0", "*"}, {"z1", "*"}})
	require.NoError(t, err)
	idx, err := hierarchy.NewIndex(h)
	require.NoError(t, err)

	c, err := NewClassifier(ds, idx, []string{"zip"})
	require.NoError(t, err)
	p := c.Classify(lattice.Node{0})
	require.Len(t, p.Classes, 2)
	assert.Equal(t, []int{100, 42}, p.RecordIDs(p.Classes[0]))
	assert.Equal(t, []int{7}, p.RecordIDs(p.Classes[1]))
	assert.Equal(t, 7, c.RecordID(1))
}
