package postgres

import (
	"context"
	stderrors "errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/tabanon/internal/testutil"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/interfaces"
	"github.com/inferloop/tabanon/pkg/models"
)

func testRelease(t *testing.T) *interfaces.Release {
	ds, err := models.NewDatasetFromRecords(
		[]models.Attribute{
			{Name: "zip", Role: models.RoleQuasiIdentifier},
			{Name: "disease", Role: models.RoleSensitive},
		},
		[]models.Record{
			{ID: 3, Values: []string{"816**", "flu"}},
			{ID: 7, Values: []string{"819**", "cold"}},
		})
	require.NoError(t, err)
	return &interfaces.Release{RunID: "run-1", Dataset: ds, Report: map[string]int{"records": 2}}
}

func TestCreateTableStatement(t *testing.T) {
	got := CreateTableStatement("released", []string{"zip", "odd\"name"})
	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "released" (run_id TEXT NOT NULL, record_id BIGINT NOT NULL, "zip" TEXT, "odd""name" TEXT)`,
		got)
}

func TestWriteCopiesRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	s, err := NewSinkWithDB(&Config{Table: "released", ReportTable: "reports"}, db, testutil.NewLogger())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(CreateTableStatement("released", []string{"zip", "disease"}))).
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare(regexp.QuoteMeta(pq.CopyIn("released", "run_id", "record_id", "zip", "disease")))
	prep.ExpectExec().WithArgs("run-1", int64(3), "816**", "flu").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("run-1", int64(7), "819**", "cold").WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithoutArgs().WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "reports"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "reports"`).WithArgs("run-1", `{"records":2}`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectClose()

	require.NoError(t, s.Write(context.Background(), testRelease(t)))
	require.NoError(t, s.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s, err := NewSinkWithDB(&Config{Table: "released"}, db, testutil.NewLogger())
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(stderrors.New("permission denied"))
	mock.ExpectRollback()

	err = s.Write(context.Background(), testRelease(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSinkValidation(t *testing.T) {
	_, err := NewSink(nil, nil)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))
	_, err = NewSink(&Config{}, nil)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidConfiguration))

	s, err := NewSink(&Config{Table: "released"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres", s.Name())
	assert.True(t, stderrors.Is(s.Write(context.Background(), testRelease(t)), errors.ErrStorageWriteFailed))
	assert.True(t, stderrors.Is(s.Connect(context.Background()), errors.ErrInvalidConfiguration))
	assert.NoError(t, s.Close())
}
