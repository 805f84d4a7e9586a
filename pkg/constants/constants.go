package constants

import "time"

// Application constants
const (
	AppName        = "tabanon"
	AppDescription = "Tabular microdata anonymization by lattice search"
	AppVersion     = "0.1.0"

	// EnvPrefix is the prefix for environment overrides of job configuration
	EnvPrefix = "TABANON"
)

// Anonymization defaults
const (
	DefaultK                = 2
	DefaultSuppressionLimit = 0.0
	DefaultSuppressionMode  = "redact"
	DefaultLossMetric       = "height"
	DefaultAggregation      = "sum"

	// WildcardMarker replaces suppressed quasi-identifier values and is the
	// wildcard of the risk model. A hierarchy may only use it as a label that
	// covers its whole domain.
	WildcardMarker = "*"

	// EntropyTolerance absorbs floating point error when comparing a class
	// entropy with ln(l).
	EntropyTolerance = 1e-9
)

// Risk defaults
const (
	DefaultRiskThreshold    = 0.1
	DefaultRiskEstimator    = "sample"
	DefaultSamplingFraction = 1.0
)

// Input/output defaults
const (
	DefaultDelimiter          = ","
	DefaultHierarchyDelimiter = ";"
	DefaultOutputFormat       = "csv"
	DefaultReportFormat       = "json"
	DefaultPostgresTable      = "anonymized_records"
	DefaultS3Prefix           = "tabanon"
)

// Runtime defaults
const (
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultMetricsPath     = "/metrics"
	DefaultHealthPath      = "/healthz"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultStorageTimeout  = 30 * time.Second
)

// Metric names
const (
	MetricsNamespace = "tabanon"
	MetricsSubsystem = "search"
)
