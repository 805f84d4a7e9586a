package interfaces

import (
	"context"

	"github.com/inferloop/tabanon/pkg/models"
)

// Release is an anonymized dataset together with the report describing how it
// was produced
type Release struct {
	RunID   string
	Dataset *models.Dataset
	// Report is JSON serializable
	Report interface{}
}

// ResultSink persists releases
type ResultSink interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// Write persists one release
	Write(ctx context.Context, release *Release) error

	// Close releases backend resources
	Close() error
}

// DatasetSource loads a dataset bound to a schema
type DatasetSource interface {
	Read(ctx context.Context, attributes []models.Attribute) (*models.Dataset, error)
}
