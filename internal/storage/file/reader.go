// Package file reads input datasets from CSV files and writes releases to
// the local filesystem.
package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// ReaderConfig configures CSV input
type ReaderConfig struct {
	Path      string `json:"path" yaml:"path" mapstructure:"path"`
	Delimiter string `json:"delimiter" yaml:"delimiter" mapstructure:"delimiter"`
	// Header means the first row names the columns
	Header bool `json:"header" yaml:"header" mapstructure:"header"`
}

// Reader loads a dataset from CSV and binds it to a schema
type Reader struct {
	config *ReaderConfig
	logger *logrus.Logger
}

// NewReader creates a CSV dataset reader
func NewReader(config *ReaderConfig, logger *logrus.Logger) (*Reader, error) {
	if config == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidInput, "reader config cannot be nil")
	}
	if config.Delimiter == "" {
		config.Delimiter = constants.DefaultDelimiter
	}
	if utf8.RuneCountInString(config.Delimiter) != 1 {
		return nil, errors.NewValidationError(errors.CodeInvalidInput,
			fmt.Sprintf("delimiter must be a single character, got %q", config.Delimiter))
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Reader{config: config, logger: logger}, nil
}

// Read opens the configured path and reads it
func (r *Reader) Read(ctx context.Context, attributes []models.Attribute) (*models.Dataset, error) {
	f, err := os.Open(r.config.Path)
	if err != nil {
		return nil, r.inputError(err, fmt.Sprintf("failed to open %s", r.config.Path))
	}
	defer f.Close()
	return r.ReadFrom(ctx, f, attributes)
}

// ReadFrom reads CSV rows from src. With a header, every attribute must name
// a column and columns without an attribute are kept as insensitive; without
// one, attributes bind to columns by position. Record ids are data row
// positions starting at 0.
func (r *Reader) ReadFrom(ctx context.Context, src io.Reader, attributes []models.Attribute) (*models.Dataset, error) {
	reader := csv.NewReader(src)
	reader.Comma, _ = utf8.DecodeRuneInString(r.config.Delimiter)
	reader.TrimLeadingSpace = true

	var (
		schema  []models.Attribute
		columns []int
	)
	if r.config.Header {
		header, err := reader.Read()
		if err != nil {
			return nil, r.inputError(err, "failed to read header")
		}
		schema, columns, err = bindHeader(header, attributes)
		if err != nil {
			return nil, err
		}
	} else {
		schema = attributes
		columns = make([]int, len(attributes))
		for i := range columns {
			columns[i] = i
		}
		reader.FieldsPerRecord = len(attributes)
	}

	var records []models.Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, r.inputError(err, "failed to read row")
		}
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = row[col]
		}
		records = append(records, models.Record{ID: len(records), Values: values})
	}

	ds, err := models.NewDatasetFromRecords(schema, records)
	if err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{
		"path":       r.config.Path,
		"records":    ds.Size(),
		"attributes": len(schema),
	}).Info("Loaded dataset")
	return ds, nil
}

func (r *Reader) inputError(err error, message string) error {
	return errors.NewValidationError(errors.CodeInvalidInput, message).WithDetails(err.Error())
}

func bindHeader(header []string, attributes []models.Attribute) ([]models.Attribute, []int, error) {
	position := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := position[name]; dup {
			return nil, nil, errors.NewValidationError(errors.CodeInvalidSchema,
				fmt.Sprintf("column %q appears twice in the header", name))
		}
		position[name] = i
	}

	declared := make(map[string]models.Attribute, len(attributes))
	for _, attr := range attributes {
		if _, ok := position[attr.Name]; !ok {
			return nil, nil, errors.NewValidationError(errors.CodeInvalidSchema,
				fmt.Sprintf("attribute %q is not a column of the input", attr.Name))
		}
		declared[attr.Name] = attr
	}

	schema := make([]models.Attribute, len(header))
	columns := make([]int, len(header))
	for i, name := range header {
		attr, ok := declared[name]
		if !ok {
			attr = models.Attribute{Name: name, Role: models.RoleInsensitive}
		}
		schema[i] = attr
		columns[i] = i
	}
	return schema, columns, nil
}
