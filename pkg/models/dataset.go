package models

import (
	"fmt"
	"strings"

	"github.com/inferloop/tabanon/pkg/errors"
)

// AttributeRole declares how an attribute takes part in anonymization
type AttributeRole string

const (
	RoleIdentifier      AttributeRole = "identifier"
	RoleQuasiIdentifier AttributeRole = "quasi_identifier"
	RoleSensitive       AttributeRole = "sensitive"
	RoleInsensitive     AttributeRole = "insensitive"
)

// Valid reports whether the role is one of the known roles
func (r AttributeRole) Valid() bool {
	switch r {
	case RoleIdentifier, RoleQuasiIdentifier, RoleSensitive, RoleInsensitive:
		return true
	}
	return false
}

// DataType tags the declared type of an attribute's raw values
type DataType string

const (
	DataTypeInteger DataType = "integer"
	DataTypeString  DataType = "string"
	DataTypeDate    DataType = "date"
)

// Valid reports whether the datatype is one of the known datatypes
func (t DataType) Valid() bool {
	switch t {
	case DataTypeInteger, DataTypeString, DataTypeDate:
		return true
	}
	return false
}

// Attribute describes one column of a dataset
type Attribute struct {
	Name string        `json:"name"`
	Role AttributeRole `json:"role"`
	Type DataType      `json:"type"`
}

// Record is one row of raw values plus its stable input row index
type Record struct {
	ID     int      `json:"id"`
	Values []string `json:"values"`
}

// Value returns the raw value at the given column
func (r Record) Value(column int) string {
	return r.Values[column]
}

// Dataset is an ordered sequence of records sharing one attribute schema.
// A dataset is never mutated after construction.
type Dataset struct {
	attributes []Attribute
	records    []Record
	columns    map[string]int
}

// NewDataset creates a dataset from a schema and raw rows. Record ids are the
// row positions in rows.
func NewDataset(attributes []Attribute, rows [][]string) (*Dataset, error) {
	records := make([]Record, len(rows))
	for i, row := range rows {
		records[i] = Record{ID: i, Values: row}
	}
	return NewDatasetFromRecords(attributes, records)
}

// NewDatasetFromRecords creates a dataset from records that already carry ids.
func NewDatasetFromRecords(attributes []Attribute, records []Record) (*Dataset, error) {
	attributes = append([]Attribute(nil), attributes...)
	columns := make(map[string]int, len(attributes))
	for i, attr := range attributes {
		if strings.TrimSpace(attr.Name) == "" {
			return nil, invalidData("attribute %d has an empty name", i)
		}
		if _, exists := columns[attr.Name]; exists {
			return nil, invalidData("duplicate attribute name %q", attr.Name)
		}
		if !attr.Role.Valid() {
			return nil, invalidData("attribute %q has unknown role %q", attr.Name, attr.Role)
		}
		if attr.Type == "" {
			attributes[i].Type = DataTypeString
		} else if !attr.Type.Valid() {
			return nil, invalidData("attribute %q has unknown datatype %q", attr.Name, attr.Type)
		}
		columns[attr.Name] = i
	}

	seen := make(map[int]struct{}, len(records))
	for i, rec := range records {
		if len(rec.Values) != len(attributes) {
			return nil, invalidData("record %d has %d values, schema has %d attributes",
				rec.ID, len(rec.Values), len(attributes))
		}
		if _, dup := seen[rec.ID]; dup {
			return nil, invalidData("duplicate record id %d at position %d", rec.ID, i)
		}
		seen[rec.ID] = struct{}{}
	}

	return &Dataset{
		attributes: attributes,
		records:    records,
		columns:    columns,
	}, nil
}

// Attributes returns the schema
func (d *Dataset) Attributes() []Attribute {
	return d.attributes
}

// Records returns the records in input order
func (d *Dataset) Records() []Record {
	return d.records
}

// Size returns the number of records
func (d *Dataset) Size() int {
	return len(d.records)
}

// Column returns the position of the named attribute
func (d *Dataset) Column(name string) (int, bool) {
	idx, ok := d.columns[name]
	return idx, ok
}

// Attribute returns the named attribute
func (d *Dataset) Attribute(name string) (Attribute, bool) {
	idx, ok := d.columns[name]
	if !ok {
		return Attribute{}, false
	}
	return d.attributes[idx], true
}

// AttributesWithRole returns the names of all attributes with the given role, in schema order
func (d *Dataset) AttributesWithRole(role AttributeRole) []string {
	var names []string
	for _, attr := range d.attributes {
		if attr.Role == role {
			names = append(names, attr.Name)
		}
	}
	return names
}

// QuasiIdentifiers returns the quasi-identifier attribute names in schema order
func (d *Dataset) QuasiIdentifiers() []string {
	return d.AttributesWithRole(RoleQuasiIdentifier)
}

// DistinctValues returns the distinct raw values of a column in order of first occurrence
func (d *Dataset) DistinctValues(name string) ([]string, error) {
	col, ok := d.columns[name]
	if !ok {
		return nil, invalidData("unknown attribute %q", name)
	}
	seen := make(map[string]struct{})
	var values []string
	for _, rec := range d.records {
		v := rec.Values[col]
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values, nil
}

func invalidData(format string, args ...interface{}) error {
	return errors.NewValidationError(errors.CodeInvalidSchema, fmt.Sprintf(format, args...))
}
