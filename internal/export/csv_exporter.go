package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/inferloop/tabanon/pkg/interfaces"
)

// CSVExporter writes the released table
type CSVExporter struct{}

// Name returns the exporter name
func (ce *CSVExporter) Name() string {
	return "csv"
}

// Format returns FormatCSV
func (ce *CSVExporter) Format() Format {
	return FormatCSV
}

// Export writes one row per released record in schema column order
func (ce *CSVExporter) Export(ctx context.Context, w io.Writer, release *interfaces.Release, options Options) error {
	if release == nil || release.Dataset == nil {
		return fmt.Errorf("release has no dataset")
	}
	delimiter := options.Delimiter
	if delimiter == "" {
		delimiter = ","
	}

	csvWriter := csv.NewWriter(w)
	csvWriter.Comma, _ = utf8.DecodeRuneInString(delimiter)

	if options.IncludeHeaders {
		var headers []string
		if options.IncludeRecordID {
			headers = append(headers, "record_id")
		}
		for _, attr := range release.Dataset.Attributes() {
			headers = append(headers, attr.Name)
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, rec := range release.Dataset.Records() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		row := rec.Values
		if options.IncludeRecordID {
			row = append([]string{strconv.Itoa(rec.ID)}, rec.Values...)
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// ValidateOptions validates CSV export options
func (ce *CSVExporter) ValidateOptions(options Options) error {
	if options.Delimiter != "" && utf8.RuneCountInString(options.Delimiter) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character")
	}
	if r, _ := utf8.DecodeRuneInString(options.Delimiter); r == '"' || r == '\n' || r == '\r' {
		return fmt.Errorf("invalid CSV delimiter %q", options.Delimiter)
	}
	return nil
}
