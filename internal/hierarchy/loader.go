package hierarchy

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/inferloop/tabanon/pkg/errors"
)

// LoadCSV reads a hierarchy table, one row per raw value:
// raw<d>level1<d>...<d>levelH, without a header.
func LoadCSV(attribute string, r io.Reader, delimiter rune) (*Hierarchy, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidHierarchy,
			fmt.Sprintf("failed to read hierarchy for %q", attribute))
	}
	return FromRows(attribute, rows)
}

// LoadFile reads a hierarchy table from path
func LoadFile(attribute, path string, delimiter rune) (*Hierarchy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeConfiguration, errors.CodeInvalidHierarchy,
			fmt.Sprintf("failed to open hierarchy file for %q", attribute))
	}
	defer f.Close()
	return LoadCSV(attribute, f, delimiter)
}
