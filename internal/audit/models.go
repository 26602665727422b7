package audit

import (
	"time"

	id "handover/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers changes to a homeowner's record and what was sent to them.
	CategoryCompliance EventCategory = "compliance"
	// CategoryOperations covers routine progress through the wizard.
	CategoryOperations EventCategory = "operations"
)

// Action names what happened.
type Action string

const (
	ActionRegistrationCreated  Action = "registration_created"
	ActionRegistrationUpdated  Action = "registration_updated"
	ActionRegistrationDeleted  Action = "registration_deleted"
	ActionEntitlementSent      Action = "entitlement_sent"
	ActionEntitlementDelivered Action = "entitlement_delivered"
	ActionWizardStepCompleted  Action = "wizard_step_completed"
	ActionQueryResponded       Action = "query_responded"
)

// Category returns the category an action is filed under.
func (a Action) Category() EventCategory {
	if a == ActionWizardStepCompleted || a == ActionRegistrationUpdated {
		return CategoryOperations
	}
	return CategoryCompliance
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category       EventCategory     `json:"category"`
	Action         Action            `json:"action"`
	Timestamp      time.Time         `json:"timestamp"`
	BuilderID      id.BuilderID      `json:"builder_id"`
	UserID         id.UserID         `json:"user_id"`
	RegistrationID id.RegistrationID `json:"registration_id"`
	Status         string            `json:"status,omitempty"`
	Step           string            `json:"step,omitempty"`
	RequestID      string            `json:"request_id,omitempty"`
	ClientIP       string            `json:"client_ip,omitempty"`
	Device         string            `json:"device,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}
