package wizard

import (
	"strings"

	"handover/internal/registration/models"
)

// InferStep picks the step a resumed registration opens on. Rules are ordered
// and the first match wins; each tests the minimal evidence that the previous
// step was completed. A persisted ready_for_review status is trusted even when
// items or documents are empty.
func InferStep(r *models.Registration) Step {
	switch {
	case r.Status == models.StatusReadyForReview:
		return StepReview
	case r.HasSelectedItems():
		return StepDocuments
	case strings.TrimSpace(r.CustomerName) != "" && strings.TrimSpace(r.CustomerEmail) != "":
		return StepItems
	default:
		return StepCustomer
	}
}
