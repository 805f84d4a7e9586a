package export

import (
	"time"

	"github.com/inferloop/tabanon/internal/anonymizer"
	"github.com/inferloop/tabanon/internal/privacy"
	"github.com/inferloop/tabanon/internal/risk"
	"github.com/inferloop/tabanon/internal/search"
	"github.com/inferloop/tabanon/pkg/constants"
	"github.com/inferloop/tabanon/pkg/interfaces"
)

// Report describes one anonymization run
type Report struct {
	RunID              string                  `json:"run_id"`
	Version            string                  `json:"version"`
	Models             []string                `json:"privacy_models"`
	Attributes         []string                `json:"quasi_identifiers"`
	Node               []int                   `json:"node"`
	Levels             map[string]int          `json:"levels"`
	Metric             string                  `json:"metric"`
	Loss               float64                 `json:"loss"`
	Records            int                     `json:"records"`
	Released           int                     `json:"released"`
	Suppressed         int                     `json:"suppressed"`
	SuppressedFraction float64                 `json:"suppressed_fraction"`
	SuppressionMode    privacy.SuppressionMode `json:"suppression_mode"`
	Search             search.Stats            `json:"search"`
	Risk               *risk.Summary           `json:"risk,omitempty"`
	StartedAt          time.Time               `json:"started_at"`
	CompletedAt        time.Time               `json:"completed_at"`
}

// NewReport summarizes res. summary may be nil when risk was not estimated.
func NewReport(res *anonymizer.Result, models []privacy.Model, summary *risk.Summary) *Report {
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.String()
	}
	return &Report{
		RunID:              res.RunID,
		Version:            constants.AppVersion,
		Models:             names,
		Attributes:         res.Attributes,
		Node:               []int(res.Node),
		Levels:             res.Levels,
		Metric:             res.Metric,
		Loss:               res.Loss,
		Records:            res.Records,
		Released:           res.Output.Size(),
		Suppressed:         len(res.Suppressed),
		SuppressedFraction: res.SuppressedFraction(),
		SuppressionMode:    res.SuppressionMode,
		Search:             res.Stats,
		Risk:               summary,
		StartedAt:          res.StartedAt,
		CompletedAt:        res.CompletedAt,
	}
}

// NewRelease pairs the released table of res with its report
func NewRelease(res *anonymizer.Result, report *Report) *interfaces.Release {
	return &interfaces.Release{
		RunID:   res.RunID,
		Dataset: res.Output,
		Report:  report,
	}
}
