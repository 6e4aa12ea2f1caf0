package reconcile

import (
	"fmt"

	"github.com/iacguard/iacguard/pkg/models"
)

// InvalidTransitionError rejects an illegal status change; the finding is
// left unchanged.
type InvalidTransitionError struct {
	From models.VulnStatus
	To   models.VulnStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: %s -> %s", e.From, e.To)
}

// manualTransitions are the status changes a user may request directly.
// Resolution is deliberately absent: only the reconciliation engine may
// resolve a finding, by absence of re-detection.
var manualTransitions = map[models.VulnStatus][]models.VulnStatus{
	models.VulnStatusOpen:       {models.VulnStatusInProgress, models.VulnStatusIgnored},
	models.VulnStatusInProgress: {models.VulnStatusIgnored},
	models.VulnStatusIgnored:    {models.VulnStatusOpen},
	models.VulnStatusResolved:   {},
}

// ValidateTransition checks a manual (user-requested) status change.
func ValidateTransition(from, to models.VulnStatus) error {
	if !to.Valid() {
		return &InvalidTransitionError{From: from, To: to}
	}
	if from == to {
		return &InvalidTransitionError{From: from, To: to}
	}
	for _, allowed := range manualTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &InvalidTransitionError{From: from, To: to}
}

// ApplyTransition mutates the finding's status after validation.
func ApplyTransition(v *models.Vulnerability, to models.VulnStatus) error {
	if err := ValidateTransition(v.Status, to); err != nil {
		return err
	}
	v.Status = to
	return nil
}
