package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/inferloop/tabanon/pkg/interfaces"
)

// JSONExporter writes the release report
type JSONExporter struct{}

// Name returns the exporter name
func (je *JSONExporter) Name() string {
	return "json"
}

// Format returns FormatJSON
func (je *JSONExporter) Format() Format {
	return FormatJSON
}

// Export encodes release.Report
func (je *JSONExporter) Export(ctx context.Context, w io.Writer, release *interfaces.Release, options Options) error {
	if release == nil || release.Report == nil {
		return fmt.Errorf("release has no report")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	encoder := json.NewEncoder(w)
	if options.Pretty {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(release.Report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// ValidateOptions accepts every option set
func (je *JSONExporter) ValidateOptions(Options) error {
	return nil
}
