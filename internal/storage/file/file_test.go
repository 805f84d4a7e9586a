package file

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/tabanon/internal/export"
	"github.com/inferloop/tabanon/internal/testutil"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/interfaces"
	"github.com/inferloop/tabanon/pkg/models"
)

const censusCSV = `name,age,sex,zip,disease,comment
Ada,34,female,81667,gastritis,first
Ben,45,male,81675,flu,"two, words"
`

func TestReadWithHeader(t *testing.T) {
	r, err := NewReader(&ReaderConfig{Header: true}, testutil.NewLogger())
	require.NoError(t, err)

	ds, err := r.ReadFrom(context.Background(), strings.NewReader(censusCSV), testutil.CensusAttributes())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Size())
	assert.Equal(t, []string{"age", "sex", "zip"}, ds.QuasiIdentifiers())

	comment, ok := ds.Attribute("comment")
	require.True(t, ok)
	assert.Equal(t, models.RoleInsensitive, comment.Role)

	rec := ds.Records()[1]
	assert.Equal(t, 1, rec.ID)
	assert.Equal(t, "two, words", rec.Values[5])
}

func TestReadWithoutHeader(t *testing.T) {
	r, err := NewReader(&ReaderConfig{Delimiter: ";"}, testutil.NewLogger())
	require.NoError(t, err)
	attrs := []models.Attribute{
		{Name: "zip", Role: models.RoleQuasiIdentifier},
		{Name: "disease", Role: models.RoleSensitive},
	}
	ds, err := r.ReadFrom(context.Background(), strings.NewReader("81667;flu\n81675;cold\n"), attrs)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Size())
	assert.Equal(t, []string{"81675", "cold"}, ds.Records()[1].Values)

	_, err = r.ReadFrom(context.Background(), strings.NewReader("81667;flu;extra\n"), attrs)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidInputData))
}

func TestReadMissingColumn(t *testing.T) {
	r, err := NewReader(&ReaderConfig{Header: true}, testutil.NewLogger())
	require.NoError(t, err)
	attrs := []models.Attribute{{Name: "salary", Role: models.RoleSensitive}}
	_, err = r.ReadFrom(context.Background(), strings.NewReader(censusCSV), attrs)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidInputData))
}

func TestReadFile(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	path := filepath.Join(env.TempDir, "census.csv")
	require.NoError(t, os.WriteFile(path, []byte(censusCSV), 0o644))

	var source interfaces.DatasetSource
	source, err := NewReader(&ReaderConfig{Path: path, Header: true}, env.Logger)
	require.NoError(t, err)
	ds, err := source.Read(env.Context, testutil.CensusAttributes())
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Size())

	r, err := NewReader(&ReaderConfig{Path: filepath.Join(env.TempDir, "missing.csv")}, env.Logger)
	require.NoError(t, err)
	_, err = r.Read(env.Context, testutil.CensusAttributes())
	assert.Error(t, err)
}

func TestNewReaderRejectsDelimiter(t *testing.T) {
	_, err := NewReader(&ReaderConfig{Delimiter: "||"}, nil)
	assert.Error(t, err)
	_, err = NewReader(nil, nil)
	assert.Error(t, err)
}

func TestSinkWritesReleaseAndReport(t *testing.T) {
	env := testutil.NewTestEnvironment(t)
	ds, err := models.NewDataset([]models.Attribute{{Name: "zip", Role: models.RoleQuasiIdentifier}}, [][]string{{"81***"}})
	require.NoError(t, err)

	var sink interfaces.ResultSink
	sink, err = NewSink(&SinkConfig{
		Path:    filepath.Join(env.TempDir, "out", "released.csv"),
		Options: export.DefaultOptions(),
	}, nil, env.Logger)
	require.NoError(t, err)
	defer sink.Close()

	release := &interfaces.Release{RunID: "r1", Dataset: ds, Report: map[string]string{"run_id": "r1"}}
	require.NoError(t, sink.Write(env.Context, release))
	testutil.AssertFileExists(t, filepath.Join(env.TempDir, "out", "released.csv"), "zip\n81***\n")
	testutil.AssertFileExists(t, filepath.Join(env.TempDir, "out", "report.json"), `"run_id": "r1"`)
}
