// Package export encodes releases: the anonymized table as CSV and the run
// report as JSON.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/interfaces"
)

// Format names an output encoding
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options tune an export
type Options struct {
	// Delimiter is a single character, "," by default
	Delimiter       string `json:"delimiter" yaml:"delimiter" mapstructure:"delimiter"`
	IncludeHeaders  bool   `json:"include_headers" yaml:"include_headers" mapstructure:"include_headers"`
	IncludeRecordID bool   `json:"include_record_id" yaml:"include_record_id" mapstructure:"include_record_id"`
	Pretty          bool   `json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// DefaultOptions writes headers and pretty JSON
func DefaultOptions() Options {
	return Options{
		Delimiter:      constants.DefaultDelimiter,
		IncludeHeaders: true,
		Pretty:         true,
	}
}

// Exporter encodes one part of a release
type Exporter interface {
	Name() string
	Format() Format
	Export(ctx context.Context, w io.Writer, release *interfaces.Release, options Options) error
	ValidateOptions(options Options) error
}

// ExportEngine dispatches releases to the exporter of a format
type ExportEngine struct {
	logger    *logrus.Logger
	exporters map[Format]Exporter
	mu        sync.RWMutex
}

// NewExportEngine creates an engine with the csv and json exporters registered
func NewExportEngine(logger *logrus.Logger) *ExportEngine {
	if logger == nil {
		logger = logrus.New()
	}
	ee := &ExportEngine{
		logger:    logger,
		exporters: make(map[Format]Exporter),
	}
	ee.RegisterExporter(&CSVExporter{})
	ee.RegisterExporter(&JSONExporter{})
	return ee
}

// RegisterExporter adds or replaces the exporter of its format
func (ee *ExportEngine) RegisterExporter(exporter Exporter) {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.exporters[exporter.Format()] = exporter
}

// SupportedFormats lists registered formats in name order
func (ee *ExportEngine) SupportedFormats() []Format {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	formats := make([]Format, 0, len(ee.exporters))
	for f := range ee.exporters {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// Export writes release in format to w
func (ee *ExportEngine) Export(ctx context.Context, release *interfaces.Release, format Format, w io.Writer, options Options) error {
	ee.mu.RLock()
	exporter, ok := ee.exporters[format]
	ee.mu.RUnlock()
	if !ok {
		return errors.NewAppError(errors.ErrorTypeExport, errors.CodeExportFailed,
			fmt.Sprintf("unsupported export format %q", format))
	}
	if err := exporter.ValidateOptions(options); err != nil {
		return errors.WrapError(err, errors.ErrorTypeExport, errors.CodeExportFailed, "invalid export options")
	}
	if err := exporter.Export(ctx, w, release, options); err != nil {
		return errors.WrapError(err, errors.ErrorTypeExport, errors.CodeExportFailed,
			fmt.Sprintf("%s export failed", exporter.Name()))
	}
	return nil
}

// ExportToFile writes release in format to path, creating parent directories
func (ee *ExportEngine) ExportToFile(ctx context.Context, release *interfaces.Release, format Format, path string, options Options) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapError(err, errors.ErrorTypeExport, errors.CodeExportFailed, "failed to create output directory")
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeExport, errors.CodeExportFailed, "failed to create output file")
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.WrapError(cerr, errors.ErrorTypeExport, errors.CodeExportFailed, "failed to close output file")
		}
	}()

	if err := ee.Export(ctx, release, format, f, options); err != nil {
		return err
	}
	ee.logger.WithFields(logrus.Fields{
		"run_id": release.RunID,
		"format": format,
		"path":   path,
	}).Info("Exported release")
	return nil
}
