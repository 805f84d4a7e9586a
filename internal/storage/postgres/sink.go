// Package postgres bulk loads releases into a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/interfaces"
)

// Config contains PostgreSQL connection settings
type Config struct {
	DSN   string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	Table string `json:"table" yaml:"table" mapstructure:"table"`
	// ReportTable stores one JSON report per run; empty disables it
	ReportTable     string        `json:"report_table" yaml:"report_table" mapstructure:"report_table"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// Sink writes released rows with COPY inside one transaction per release
type Sink struct {
	config *Config
	db     *sql.DB
	logger *logrus.Logger
}

// NewSink creates an unconnected PostgreSQL sink
func NewSink(config *Config, logger *logrus.Logger) (*Sink, error) {
	if config == nil {
		return nil, errors.NewConfigurationError(errors.CodeInvalidInput, "postgres config cannot be nil")
	}
	if config.Table == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidInput, "postgres table is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}
	if config.MaxOpenConns == 0 {
		config.MaxOpenConns = 4
	}
	if config.ConnMaxLifetime == 0 {
		config.ConnMaxLifetime = 30 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Sink{config: config, logger: logger}, nil
}

// NewSinkWithDB creates a sink around an open database handle
func NewSinkWithDB(config *Config, db *sql.DB, logger *logrus.Logger) (*Sink, error) {
	s, err := NewSink(config, logger)
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

// Connect opens and pings the database
func (s *Sink) Connect(ctx context.Context) error {
	if s.config.DSN == "" {
		return errors.NewConfigurationError(errors.CodeInvalidInput, "postgres dsn is required")
	}
	db, err := sql.Open("postgres", s.config.DSN)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "failed to open database connection")
	}
	db.SetMaxOpenConns(s.config.MaxOpenConns)
	db.SetConnMaxLifetime(s.config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeConnectionFailed, "failed to ping database")
	}
	s.db = db

	s.logger.WithField("table", s.config.Table).Info("Connected to PostgreSQL")
	return nil
}

// Name implements interfaces.ResultSink
func (s *Sink) Name() string {
	return "postgres"
}

// Write implements interfaces.ResultSink. Every released column is stored
// as TEXT next to run_id and record_id.
func (s *Sink) Write(ctx context.Context, release *interfaces.Release) (err error) {
	if s.db == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "postgres sink is not connected")
	}
	if release == nil || release.Dataset == nil {
		return errors.NewValidationError(errors.CodeInvalidInput, "release has no dataset")
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.writeError(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	columns := []string{"run_id", "record_id"}
	for _, attr := range release.Dataset.Attributes() {
		columns = append(columns, attr.Name)
	}
	if _, err = tx.ExecContext(ctx, CreateTableStatement(s.config.Table, columns[2:])); err != nil {
		return s.writeError(err, "failed to create release table")
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.config.Table, columns...))
	if err != nil {
		return s.writeError(err, "failed to prepare COPY statement")
	}
	defer stmt.Close()

	args := make([]interface{}, len(columns))
	for _, rec := range release.Dataset.Records() {
		args[0] = release.RunID
		args[1] = int64(rec.ID)
		for i, v := range rec.Values {
			args[i+2] = v
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return s.writeError(err, "failed to copy record")
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		return s.writeError(err, "failed to finalize COPY")
	}

	if s.config.ReportTable != "" && release.Report != nil {
		if err = s.writeReport(ctx, tx, release); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return s.writeError(err, "failed to commit release")
	}

	s.logger.WithFields(logrus.Fields{
		"table":   s.config.Table,
		"run_id":  release.RunID,
		"records": release.Dataset.Size(),
	}).Info("Stored release")
	return nil
}

func (s *Sink) writeReport(ctx context.Context, tx *sql.Tx, release *interfaces.Release) error {
	payload, err := json.Marshal(release.Report)
	if err != nil {
		return s.writeError(err, "failed to encode report")
	}
	table := pq.QuoteIdentifier(s.config.ReportTable)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (run_id TEXT PRIMARY KEY, report JSONB NOT NULL, created_at TIMESTAMPTZ NOT NULL DEFAULT now())",
		table)); err != nil {
		return s.writeError(err, "failed to create report table")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (run_id, report) VALUES ($1, $2) ON CONFLICT (run_id) DO UPDATE SET report = EXCLUDED.report",
		table), release.RunID, string(payload)); err != nil {
		return s.writeError(err, "failed to insert report")
	}
	return nil
}

func (s *Sink) writeError(err error, message string) error {
	return errors.WrapError(err, errors.ErrorTypeStorage, errors.CodeWriteFailed, message)
}

// Close implements interfaces.ResultSink
func (s *Sink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTableStatement returns the DDL for a release table with the given
// attribute columns.
func CreateTableStatement(table string, attributes []string) string {
	defs := []string{"run_id TEXT NOT NULL", "record_id BIGINT NOT NULL"}
	for _, name := range attributes {
		defs = append(defs, pq.QuoteIdentifier(name)+" TEXT")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", pq.QuoteIdentifier(table), strings.Join(defs, ", "))
}
