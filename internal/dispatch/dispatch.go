// Package dispatch delivers finalized entitlement packages to homeowners and
// applies the delivery receipts that come back.
package dispatch

import (
	"context"
	"time"

	id "handover/pkg/domain"
)

const (
	RoutingKeySend      = "entitlement.send"
	RoutingKeyDelivered = "entitlement.delivered"
)

// Entitlement is the package handed to the delivery channel when a builder
// approves a registration.
type Entitlement struct {
	RegistrationID  id.RegistrationID   `json:"registration_id"`
	BuilderID       id.BuilderID        `json:"builder_id"`
	CustomerName    string              `json:"customer_name"`
	CustomerEmail   string              `json:"customer_email"`
	PropertyAddress string              `json:"property_address"`
	SelectedItems   map[string][]string `json:"selected_items"`
	Documents       map[string][]string `json:"documents"`
	RequestedAt     time.Time           `json:"requested_at"`
}

// Receipt reports that an entitlement reached the homeowner.
type Receipt struct {
	RegistrationID id.RegistrationID `json:"registration_id"`
	BuilderID      id.BuilderID      `json:"builder_id"`
	DeliveredAt    time.Time         `json:"delivered_at"`
}

// Dispatcher hands an entitlement to the delivery channel. Implementations
// must be safe to call again for the same registration.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Entitlement) error
}

// DeliveryRecorder applies delivery receipts to the registration record.
type DeliveryRecorder interface {
	MarkDelivered(ctx context.Context, builderID id.BuilderID, regID id.RegistrationID, at time.Time) error
}
