package anonymizer

import (
	"github.com/inferloop/tabanon/internal/lattice"
	"github.com/inferloop/tabanon/internal/privacy"
	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// Materialize builds the released table for node. suppressed holds row
// positions. Identifier columns are dropped and record ids are kept.
func Materialize(ds *models.Dataset, classifier *privacy.Classifier, node lattice.Node, suppressed []int, mode privacy.SuppressionMode) (*models.Dataset, error) {
	switch mode {
	case privacy.SuppressionRedact, privacy.SuppressionOmit:
	default:
		return nil, errors.NewConfigurationError(errors.CodeInvalidSuppression,
			"unknown suppression mode "+string(mode))
	}

	qiSlot := make(map[string]int)
	for i, attr := range classifier.Attributes() {
		qiSlot[attr] = i
	}

	var (
		attrs []models.Attribute
		// source[i] is the input column of output column i
		source []int
	)
	for col, attr := range ds.Attributes() {
		if attr.Role == models.RoleIdentifier {
			continue
		}
		attrs = append(attrs, attr)
		source = append(source, col)
	}

	isSuppressed := make(map[int]bool, len(suppressed))
	for _, pos := range suppressed {
		isSuppressed[pos] = true
	}

	records := make([]models.Record, 0, ds.Size())
	for pos, rec := range ds.Records() {
		hidden := isSuppressed[pos]
		if hidden && mode == privacy.SuppressionOmit {
			continue
		}
		var labels []string
		if !hidden {
			labels = classifier.Generalize(pos, node)
		}

		values := make([]string, len(attrs))
		for i, attr := range attrs {
			slot, isQI := qiSlot[attr.Name]
			switch {
			case !isQI:
				values[i] = rec.Values[source[i]]
			case hidden:
				values[i] = constants.WildcardMarker
			default:
				values[i] = labels[slot]
			}
		}
		records = append(records, models.Record{ID: rec.ID, Values: values})
	}

	return models.NewDatasetFromRecords(attrs, records)
}
