package handler

import (
	"strings"

	"handover/internal/registration/models"
	"handover/internal/wizard"
	"handover/internal/wizard/service"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
)

// StartRequest is the optional body of POST /wizards. Without a registration
// id the wizard starts blank.
type StartRequest struct {
	RegistrationID string `json:"registration_id"`

	parsed *id.RegistrationID
}

func (r *StartRequest) Validate() error {
	if r == nil {
		return nil
	}
	r.RegistrationID = strings.TrimSpace(r.RegistrationID)
	if r.RegistrationID == "" {
		return nil
	}
	regID, err := id.ParseRegistrationID(r.RegistrationID)
	if err != nil {
		return dErrors.NewValidation(map[string]string{"registration_id": "must be a valid id"})
	}
	r.parsed = &regID
	return nil
}

// NavigateRequest is the body of POST /wizards/{id}/navigate.
type NavigateRequest struct {
	Step string `json:"step"`

	target wizard.Step
}

func (r *NavigateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Step) == "" {
		return dErrors.NewValidation(map[string]string{"step": "is required"})
	}
	step, err := wizard.ParseStep(strings.TrimSpace(r.Step))
	if err != nil {
		return err
	}
	r.target = step
	return nil
}

// WizardResponse is the wire shape of a wizard session.
type WizardResponse struct {
	WizardID       id.WizardID       `json:"wizard_id"`
	RegistrationID id.RegistrationID `json:"registration_id"`
	Step           wizard.Step       `json:"step"`
	StepIndex      int               `json:"step_index"`
	Steps          []wizard.Step     `json:"steps"`
	Status         models.Status     `json:"status"`
	Busy           bool              `json:"busy"`
	Closed         bool              `json:"closed"`
	State          wizard.State      `json:"state"`
	View           any               `json:"view"`
}

func toResponse(s *service.Session) *WizardResponse {
	snap := s.Snapshot
	return &WizardResponse{
		WizardID:       snap.WizardID,
		RegistrationID: snap.State.RegistrationID,
		Step:           snap.Step,
		StepIndex:      snap.Step.Index(),
		Steps:          wizard.Steps,
		Status:         snap.State.Status,
		Busy:           s.Busy,
		Closed:         snap.Closed,
		State:          snap.State,
		View:           s.View,
	}
}
