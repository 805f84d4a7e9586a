package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/inferloop/tabanon/pkg/errors"
)

func censusSchema() []Attribute {
	return []Attribute{
		{Name: "name", Role: RoleIdentifier},
		{Name: "age", Role: RoleQuasiIdentifier, Type: DataTypeInteger},
		{Name: "zip", Role: RoleQuasiIdentifier},
		{Name: "disease", Role: RoleSensitive},
	}
}

func TestNewDataset(t *testing.T) {
	ds, err := NewDataset(censusSchema(), [][]string{
		{"Ada", "34", "81667", "flu"},
		{"Ben", "45", "81675", "flu"},
		{"Cleo", "34", "81667", "gastritis"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Size())
	assert.Equal(t, []string{"age", "zip"}, ds.QuasiIdentifiers())
	assert.Equal(t, []string{"disease"}, ds.AttributesWithRole(RoleSensitive))
	assert.Equal(t, 2, ds.Records()[2].ID)
	assert.Equal(t, "gastritis", ds.Records()[2].Value(3))

	col, ok := ds.Column("zip")
	assert.True(t, ok)
	assert.Equal(t, 2, col)
	attr, ok := ds.Attribute("zip")
	require.True(t, ok)
	assert.Equal(t, DataTypeString, attr.Type)
	_, ok = ds.Attribute("salary")
	assert.False(t, ok)

	values, err := ds.DistinctValues("disease")
	require.NoError(t, err)
	assert.Equal(t, []string{"flu", "gastritis"}, values)
	_, err = ds.DistinctValues("salary")
	assert.Error(t, err)
}

func TestNewDatasetDoesNotAliasSchema(t *testing.T) {
	schema := censusSchema()
	ds, err := NewDataset(schema, nil)
	require.NoError(t, err)
	assert.Equal(t, DataType(""), schema[2].Type)
	assert.Equal(t, DataTypeString, ds.Attributes()[2].Type)
	assert.Equal(t, 0, ds.Size())
}

func TestNewDatasetRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		schema  []Attribute
		records []Record
	}{
		{"empty name", []Attribute{{Name: " ", Role: RoleSensitive}}, nil},
		{"duplicate attribute", []Attribute{{Name: "a", Role: RoleSensitive}, {Name: "a", Role: RoleSensitive}}, nil},
		{"unknown role", []Attribute{{Name: "a", Role: "secret"}}, nil},
		{"unknown datatype", []Attribute{{Name: "a", Role: RoleSensitive, Type: "float"}}, nil},
		{"short record", []Attribute{{Name: "a", Role: RoleSensitive}, {Name: "b", Role: RoleSensitive}},
			[]Record{{ID: 0, Values: []string{"x"}}}},
		{"duplicate id", []Attribute{{Name: "a", Role: RoleSensitive}},
			[]Record{{ID: 4, Values: []string{"x"}}, {ID: 4, Values: []string{"y"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDatasetFromRecords(tt.schema, tt.records)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInputData))
		})
	}
}

func TestRecordIDsArePreserved(t *testing.T) {
	ds, err := NewDatasetFromRecords(censusSchema()[:1], []Record{
		{ID: 10, Values: []string{"Ada"}},
		{ID: 3, Values: []string{"Ben"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 10, ds.Records()[0].ID)
	assert.Equal(t, 3, ds.Records()[1].ID)
}
