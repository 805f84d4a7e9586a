package config

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/tabanon/internal/hierarchy"
	"github.com/inferloop/tabanon/internal/privacy"
	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// HierarchyConfig describes how a quasi-identifier is generalized
type HierarchyConfig struct {
	// Type is one of file, redaction, interval, mask or date
	Type      string `mapstructure:"type"`
	Path      string `mapstructure:"path"`
	Delimiter string `mapstructure:"delimiter"`

	Order   string `mapstructure:"order"`
	Padding string `mapstructure:"padding"`
	Mask    string `mapstructure:"mask"`

	Widths []float64 `mapstructure:"widths"`
	Top    bool      `mapstructure:"top"`

	Layout        string   `mapstructure:"layout"`
	Granularities []string `mapstructure:"granularities"`
}

func (h *HierarchyConfig) validate() error {
	switch h.Type {
	case "file":
		if h.Path == "" {
			return fmt.Errorf("file hierarchies need a path")
		}
	case "interval":
		if len(h.Widths) == 0 {
			return fmt.Errorf("interval hierarchies need at least one width")
		}
	case "redaction", "mask", "date":
	default:
		return fmt.Errorf("unknown hierarchy type %q", h.Type)
	}
	for _, r := range []string{h.Delimiter, h.Padding, h.Mask} {
		if utf8.RuneCountInString(r) > 1 {
			return fmt.Errorf("%q must be a single character", r)
		}
	}
	return nil
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return 0
	}
	return r
}

// BuildIndex loads or builds the hierarchy of every quasi-identifier of ds.
// Builders see the distinct values of the column.
func (c *JobConfig) BuildIndex(ds *models.Dataset) (*hierarchy.Index, error) {
	var hierarchies []*hierarchy.Hierarchy
	for _, attr := range c.Attributes {
		if models.AttributeRole(attr.Role) != models.RoleQuasiIdentifier || attr.Hierarchy == nil {
			continue
		}
		h, err := c.buildHierarchy(attr.Name, attr.Hierarchy, ds)
		if err != nil {
			return nil, err
		}
		hierarchies = append(hierarchies, h)
	}
	return hierarchy.NewIndex(hierarchies...)
}

func (c *JobConfig) buildHierarchy(name string, hc *HierarchyConfig, ds *models.Dataset) (*hierarchy.Hierarchy, error) {
	if hc.Type == "file" {
		delimiter := firstRune(hc.Delimiter)
		if delimiter == 0 {
			delimiter = firstRune(constants.DefaultHierarchyDelimiter)
		}
		return hierarchy.LoadFile(name, c.resolve(hc.Path), delimiter)
	}

	var builder hierarchy.Builder
	switch hc.Type {
	case "redaction":
		builder = hierarchy.RedactionBuilder{
			Order:   hierarchy.Order(hc.Order),
			Padding: firstRune(hc.Padding),
			Mask:    firstRune(hc.Mask),
		}
	case "interval":
		builder = hierarchy.IntervalBuilder{Widths: hc.Widths, Top: hc.Top}
	case "mask":
		builder = hierarchy.MaskBuilder{Mask: firstRune(hc.Mask), Top: hc.Top}
	case "date":
		grans := make([]hierarchy.DateGranularity, len(hc.Granularities))
		for i, g := range hc.Granularities {
			grans[i] = hierarchy.DateGranularity(g)
		}
		builder = hierarchy.DateBuilder{Layout: hc.Layout, Granularities: grans, Top: hc.Top}
	default:
		return nil, errors.NewConfigurationError(errors.CodeInvalidHierarchy,
			fmt.Sprintf("unknown hierarchy type %q for %q", hc.Type, name))
	}

	values, err := ds.DistinctValues(name)
	if err != nil {
		return nil, err
	}
	return builder.Build(name, values)
}

// ModelConfig declares one privacy model
type ModelConfig struct {
	// Type is one of k_anonymity, entropy_l_diversity, distinct_l_diversity
	// or recursive_cl_diversity
	Type      string  `mapstructure:"type"`
	K         int     `mapstructure:"k"`
	Attribute string  `mapstructure:"attribute"`
	L         float64 `mapstructure:"l"`
	C         float64 `mapstructure:"c"`
}

// Model converts the declaration. Parameter ranges are checked later by
// privacy.Configuration.Validate.
func (m ModelConfig) Model() (privacy.Model, error) {
	switch m.Type {
	case "k_anonymity":
		return privacy.KAnonymity{K: m.K}, nil
	case "entropy_l_diversity":
		return privacy.EntropyLDiversity{Attribute: m.Attribute, L: m.L}, nil
	case "distinct_l_diversity":
		return privacy.DistinctLDiversity{Attribute: m.Attribute, L: int(m.L)}, nil
	case "recursive_cl_diversity":
		return privacy.RecursiveCLDiversity{Attribute: m.Attribute, C: m.C, L: int(m.L)}, nil
	}
	return nil, errors.NewConfigurationError(errors.CodeInvalidPrivacyModel,
		fmt.Sprintf("unknown privacy model %q", m.Type))
}

// PrivacyConfiguration returns the search configuration of the job
func (c *JobConfig) PrivacyConfiguration() (*privacy.Configuration, error) {
	cfg := &privacy.Configuration{
		SuppressionLimit: c.Suppression.Limit,
		SuppressionMode:  privacy.SuppressionMode(c.Suppression.Mode),
		Metric:           c.Metric,
	}
	for _, mc := range c.PrivacyModels {
		m, err := mc.Model()
		if err != nil {
			return nil, err
		}
		cfg.Models = append(cfg.Models, m)
	}
	return cfg, nil
}

// NewLogger returns a logger configured by the logging section. verbose
// forces debug level.
func (c *JobConfig) NewLogger(verbose bool) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if err := ConfigureLogger(logger, c.Logging.Level, c.Logging.Format); err != nil {
		return nil, err
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger, nil
}

// ConfigureLogger applies a level name and a text or json format
func ConfigureLogger(logger *logrus.Logger, level, format string) error {
	if level == "" {
		level = constants.DefaultLogLevel
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidInput, "invalid log level")
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return errors.NewConfigurationError(errors.CodeInvalidInput, fmt.Sprintf("unknown log format %q", format))
	}
	return nil
}
