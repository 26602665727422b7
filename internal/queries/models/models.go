package models

import (
	"strings"
	"time"

	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
)

// Status tracks a homeowner query through the builder's inbox.
type Status string

const (
	StatusOpen      Status = "open"
	StatusResponded Status = "responded"
	StatusClosed    Status = "closed"
)

func (s Status) IsValid() bool {
	return s == StatusOpen || s == StatusResponded || s == StatusClosed
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown query status "+s)
	}
	return st, nil
}

// RegistrationSummary is the slice of the owning registration shown next to a query.
type RegistrationSummary struct {
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	ProjectName   string `json:"project_name"`
}

// Query is a question a homeowner raised about their warranty package.
//
// Invariants:
//   - RespondedAt is set exactly when Response is non-empty
//   - a closed query accepts no further responses
type Query struct {
	ID             id.QueryID           `json:"id"`
	BuilderID      id.BuilderID         `json:"builder_id"`
	RegistrationID id.RegistrationID    `json:"registration_id"`
	Subject        string               `json:"subject"`
	Message        string               `json:"message"`
	Response       string               `json:"response"`
	Status         Status               `json:"status"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	RespondedAt    *time.Time           `json:"responded_at"`
	Registration   *RegistrationSummary `json:"registration,omitempty"`
}

// NewQuery validates invariants and returns an open query.
func NewQuery(queryID id.QueryID, builderID id.BuilderID, regID id.RegistrationID, subject, message string, now time.Time) (*Query, error) {
	subject = strings.TrimSpace(subject)
	message = strings.TrimSpace(message)
	if subject == "" || message == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "query needs a subject and a message")
	}
	if builderID.IsNil() || regID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "query must belong to a registration")
	}
	return &Query{
		ID:             queryID,
		BuilderID:      builderID,
		RegistrationID: regID,
		Subject:        subject,
		Message:        message,
		Status:         StatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Respond records the builder's answer. Answering again replaces the
// previous response.
func (q *Query) Respond(response string, now time.Time) error {
	response = strings.TrimSpace(response)
	if response == "" {
		return dErrors.NewValidation(map[string]string{"response": "is required"})
	}
	if q.Status == StatusClosed {
		return dErrors.New(dErrors.CodeConflict, "query is closed")
	}
	q.Response = response
	q.Status = StatusResponded
	q.RespondedAt = &now
	q.UpdatedAt = now
	return nil
}

// Close archives the query. Closing twice is a no-op.
func (q *Query) Close(now time.Time) {
	if q.Status == StatusClosed {
		return
	}
	q.Status = StatusClosed
	q.UpdatedAt = now
}

// ListFilter narrows the query inbox.
type ListFilter struct {
	Status         Status
	RegistrationID id.RegistrationID
}
