// Package config loads anonymization job files and turns them into the
// in-process configuration of the pipeline.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"

	"github.com/inferloop/tabanon/internal/export"
	"github.com/inferloop/tabanon/internal/observability/metrics"
	"github.com/inferloop/tabanon/internal/quality"
	"github.com/inferloop/tabanon/internal/risk"
	"github.com/inferloop/tabanon/internal/search"
	"github.com/inferloop/tabanon/internal/storage/file"
	"github.com/inferloop/tabanon/internal/storage/postgres"
	"github.com/inferloop/tabanon/internal/storage/s3"
	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// JobConfig is one anonymization job
type JobConfig struct {
	Input         file.ReaderConfig    `mapstructure:"input"`
	Attributes    []AttributeConfig    `mapstructure:"attributes"`
	PrivacyModels []ModelConfig        `mapstructure:"privacy_models"`
	Suppression   SuppressionConfig    `mapstructure:"suppression"`
	Metric        quality.MetricConfig `mapstructure:"metric"`
	Search        SearchConfig         `mapstructure:"search"`
	Risk          risk.Config          `mapstructure:"risk"`
	Output        OutputConfig         `mapstructure:"output"`
	S3            S3Config             `mapstructure:"s3"`
	Postgres      PostgresConfig       `mapstructure:"postgres"`
	Metrics       metrics.Config       `mapstructure:"metrics"`
	Logging       LoggingConfig        `mapstructure:"logging"`

	// dir resolves relative paths in the job file
	dir string
}

// AttributeConfig declares one column
type AttributeConfig struct {
	Name      string           `mapstructure:"name"`
	Role      string           `mapstructure:"role"`
	Type      string           `mapstructure:"type"`
	Hierarchy *HierarchyConfig `mapstructure:"hierarchy"`
}

// SuppressionConfig bounds and shapes record suppression
type SuppressionConfig struct {
	Limit float64 `mapstructure:"limit"`
	Mode  string  `mapstructure:"mode"`
}

// SearchConfig tunes the lattice search
type SearchConfig struct {
	Workers int `mapstructure:"workers"`
}

// OutputConfig names the local release files
type OutputConfig struct {
	Path            string `mapstructure:"path"`
	ReportPath      string `mapstructure:"report_path"`
	Delimiter       string `mapstructure:"delimiter"`
	IncludeHeaders  bool   `mapstructure:"include_headers"`
	IncludeRecordID bool   `mapstructure:"include_record_id"`
}

// S3Config enables the S3 sink
type S3Config struct {
	Enabled   bool `mapstructure:"enabled"`
	s3.Config `mapstructure:",squash"`
}

// PostgresConfig enables the PostgreSQL sink
type PostgresConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	postgres.Config `mapstructure:",squash"`
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads a job file. Every key can be overridden from the environment,
// e.g. TABANON_SUPPRESSION_LIMIT.
func Load(path string) (*JobConfig, error) {
	if path == "" {
		return nil, errors.NewConfigurationError(errors.CodeInvalidInput, "a job configuration file is required")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidInput,
			fmt.Sprintf("failed to read job file %s", path))
	}

	cfg := &JobConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidInput,
			"failed to decode job file")
	}
	cfg.dir = filepath.Dir(path)
	cfg.Input.Path = cfg.resolve(cfg.Input.Path)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input.delimiter", constants.DefaultDelimiter)
	v.SetDefault("input.header", true)
	v.SetDefault("suppression.limit", constants.DefaultSuppressionLimit)
	v.SetDefault("suppression.mode", constants.DefaultSuppressionMode)
	v.SetDefault("metric.kind", constants.DefaultLossMetric)
	v.SetDefault("metric.aggregation", constants.DefaultAggregation)
	v.SetDefault("search.workers", 0)
	v.SetDefault("risk.estimator", constants.DefaultRiskEstimator)
	v.SetDefault("risk.sampling_fraction", constants.DefaultSamplingFraction)
	v.SetDefault("risk.threshold", constants.DefaultRiskThreshold)
	v.SetDefault("output.delimiter", constants.DefaultDelimiter)
	v.SetDefault("output.include_headers", true)
	v.SetDefault("s3.prefix", constants.DefaultS3Prefix)
	v.SetDefault("s3.timeout", constants.DefaultStorageTimeout)
	v.SetDefault("postgres.table", constants.DefaultPostgresTable)
	v.SetDefault("postgres.timeout", constants.DefaultStorageTimeout)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", constants.DefaultMetricsPath)
	v.SetDefault("metrics.namespace", constants.MetricsNamespace)
	v.SetDefault("metrics.subsystem", constants.MetricsSubsystem)
	v.SetDefault("metrics.job", constants.AppName)
	v.SetDefault("logging.level", constants.DefaultLogLevel)
	v.SetDefault("logging.format", constants.DefaultLogFormat)
}

func (c *JobConfig) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	return filepath.Join(c.dir, path)
}

// Validate checks the parts of the job that do not need the data. Privacy
// settings are validated against the dataset by the anonymizer.
func (c *JobConfig) Validate() error {
	ve := errors.NewValidationErrors()
	if c.Input.Path == "" {
		ve.Add("input.path", errors.CodeInvalidInput, "input path is required", nil)
	}
	if len(c.Attributes) == 0 {
		ve.Add("attributes", errors.CodeInvalidSchema, "at least one attribute is required", nil)
	}
	for i, attr := range c.Attributes {
		field := fmt.Sprintf("attributes[%d]", i)
		if attr.Name == "" {
			ve.Add(field+".name", errors.CodeInvalidSchema, "name is required", nil)
		}
		if !models.AttributeRole(attr.Role).Valid() {
			ve.Add(field+".role", errors.CodeInvalidSchema, "unknown role", attr.Role)
		}
		if models.AttributeRole(attr.Role) == models.RoleQuasiIdentifier && attr.Hierarchy == nil {
			ve.Add(field+".hierarchy", errors.CodeMissingHierarchy, "quasi-identifiers need a hierarchy", attr.Name)
		}
		if attr.Hierarchy != nil {
			if err := attr.Hierarchy.validate(); err != nil {
				ve.Add(field+".hierarchy", errors.CodeInvalidHierarchy, err.Error(), attr.Hierarchy.Type)
			}
		}
	}
	if c.Search.Workers < 0 {
		ve.Add("search.workers", errors.CodeInvalidInput, "must not be negative", c.Search.Workers)
	}
	if utf8.RuneCountInString(c.Output.Delimiter) != 1 {
		ve.Add("output.delimiter", errors.CodeInvalidInput, "must be a single character", c.Output.Delimiter)
	}
	if err := c.Risk.Validate(); err != nil {
		ve.Add("risk", errors.CodeInvalidEstimator, err.Error(), nil)
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		ve.Add("s3.bucket", errors.CodeInvalidInput, "bucket is required when s3 is enabled", nil)
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		ve.Add("postgres.dsn", errors.CodeInvalidInput, "dsn is required when postgres is enabled", nil)
	}
	return ve.ErrOrNil()
}

// Schema returns the declared attributes in file order
func (c *JobConfig) Schema() []models.Attribute {
	attrs := make([]models.Attribute, len(c.Attributes))
	for i, a := range c.Attributes {
		attrs[i] = models.Attribute{
			Name: a.Name,
			Role: models.AttributeRole(a.Role),
			Type: models.DataType(a.Type),
		}
	}
	return attrs
}

// ReleasedSchema returns the declared attributes a release still carries
func (c *JobConfig) ReleasedSchema() []models.Attribute {
	var attrs []models.Attribute
	for _, a := range c.Schema() {
		if a.Role != models.RoleIdentifier {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

// SearchConfig returns the search settings, defaulting workers to GOMAXPROCS
func (c *JobConfig) SearchConfig() *search.Config {
	sc := search.DefaultConfig()
	if c.Search.Workers > 0 {
		sc.Workers = c.Search.Workers
	}
	return sc
}

// ExportOptions returns the options of every CSV the job writes
func (c *JobConfig) ExportOptions() export.Options {
	return export.Options{
		Delimiter:       c.Output.Delimiter,
		IncludeHeaders:  c.Output.IncludeHeaders,
		IncludeRecordID: c.Output.IncludeRecordID,
		Pretty:          true,
	}
}
