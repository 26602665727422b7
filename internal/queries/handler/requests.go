package handler

import (
	"strings"

	"github.com/asaskevich/govalidator"

	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
)

// CreateQueryRequest is the body of POST /queries.
type CreateQueryRequest struct {
	RegistrationID string `json:"registration_id"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`

	regID id.RegistrationID
}

func (r *CreateQueryRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	fields := map[string]string{}
	regID, err := id.ParseRegistrationID(strings.TrimSpace(r.RegistrationID))
	if err != nil {
		fields["registration_id"] = "must be a registration id"
	}
	r.regID = regID
	r.Subject = strings.TrimSpace(r.Subject)
	r.Message = strings.TrimSpace(r.Message)
	if !govalidator.StringLength(r.Subject, "1", "200") {
		fields["subject"] = "must be 1-200 characters"
	}
	if !govalidator.StringLength(r.Message, "1", "5000") {
		fields["message"] = "must be 1-5000 characters"
	}
	if len(fields) > 0 {
		return dErrors.NewValidation(fields)
	}
	return nil
}

// RespondRequest is the body of POST /queries/{id}/respond.
type RespondRequest struct {
	Response string `json:"response"`
}

func (r *RespondRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Response = strings.TrimSpace(r.Response)
	if !govalidator.StringLength(r.Response, "1", "5000") {
		return dErrors.NewValidation(map[string]string{"response": "must be 1-5000 characters"})
	}
	return nil
}
