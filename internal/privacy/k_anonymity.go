package privacy

import (
	"fmt"

	"github.com/inferloop/tabanon/pkg/errors"
	"github.com/inferloop/tabanon/pkg/models"
)

// KAnonymity requires every equivalence class to hold at least K records
type KAnonymity struct {
	K int `json:"k"`
}

func (m KAnonymity) String() string {
	return fmt.Sprintf("k-anonymity(k=%d)", m.K)
}

func (m KAnonymity) validate(*models.Dataset) error {
	if m.K < 1 {
		return errors.NewConfigurationError(errors.CodeInvalidPrivacyModel,
			fmt.Sprintf("k must be at least 1, got %d", m.K))
	}
	return nil
}

func (m KAnonymity) evaluate(members []int, _ sensitiveColumns) (Failure, bool) {
	if len(members) >= m.K {
		return Failure{}, true
	}
	return Failure{Model: m, Measured: float64(len(members)), Required: float64(m.K)}, false
}
