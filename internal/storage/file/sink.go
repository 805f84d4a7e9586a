package file

import (
	"context"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/internal/export"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/interfaces"
)

// SinkConfig names the local outputs of a release
type SinkConfig struct {
	// Path receives the released table as CSV
	Path string `json:"path" yaml:"path" mapstructure:"path"`
	// ReportPath receives the JSON report; empty puts report.json next to Path
	ReportPath string         `json:"report_path" yaml:"report_path" mapstructure:"report_path"`
	Options    export.Options `json:"options" yaml:"options" mapstructure:"options"`
}

// Sink writes releases to local files
type Sink struct {
	config *SinkConfig
	engine *export.ExportEngine
	logger *logrus.Logger
}

// NewSink creates a local file sink
func NewSink(config *SinkConfig, engine *export.ExportEngine, logger *logrus.Logger) (*Sink, error) {
	if config == nil || config.Path == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidInput, "output path is required")
	}
	if config.ReportPath == "" {
		config.ReportPath = filepath.Join(filepath.Dir(config.Path), "report.json")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if engine == nil {
		engine = export.NewExportEngine(logger)
	}
	return &Sink{config: config, engine: engine, logger: logger}, nil
}

// Name implements interfaces.ResultSink
func (s *Sink) Name() string {
	return "file"
}

// Write implements interfaces.ResultSink
func (s *Sink) Write(ctx context.Context, release *interfaces.Release) error {
	if err := s.engine.ExportToFile(ctx, release, export.FormatCSV, s.config.Path, s.config.Options); err != nil {
		return err
	}
	if release.Report == nil {
		return nil
	}
	return s.engine.ExportToFile(ctx, release, export.FormatJSON, s.config.ReportPath, s.config.Options)
}

// Close implements interfaces.ResultSink
func (s *Sink) Close() error {
	return nil
}
