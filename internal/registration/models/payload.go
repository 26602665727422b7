package models

import (
	"time"

	id "handover/pkg/domain"
)

// Payload carries the fields to write on create or update.
//
// A nil pointer or nil map means "not supplied": the stored value is kept.
// A supplied empty string, empty map or zero Date overwrites the stored value,
// which is how optional fields are cleared instead of left stale.
type Payload struct {
	BuilderID         *id.BuilderID         `json:"builder_id,omitempty"`
	CustomerName      *string               `json:"customer_name,omitempty"`
	CustomerEmail     *string               `json:"customer_email,omitempty"`
	CustomerPhone     *string               `json:"customer_phone,omitempty"`
	PropertyAddress   *string               `json:"property_address,omitempty"`
	PropertyCity      *string               `json:"property_city,omitempty"`
	PropertyState     *string               `json:"property_state,omitempty"`
	PropertyZip       *string               `json:"property_zip,omitempty"`
	ProjectName       *string               `json:"project_name,omitempty"`
	SettlementDate    *Date                 `json:"settlement_date,omitempty"`
	Notes             *string               `json:"notes,omitempty"`
	SelectedItems     map[string][]string   `json:"selected_items,omitempty"`
	DocumentsUploaded map[string][]string   `json:"documents_uploaded,omitempty"`
	ItemDetails       map[string]ItemDetail `json:"item_details,omitempty"`
	Status            *Status               `json:"status,omitempty"`
	EntitlementSentAt *time.Time            `json:"entitlement_sent_at,omitempty"`
	DeliveredAt       *time.Time            `json:"delivered_at,omitempty"`
}

// Column is one column assignment derived from a Payload.
type Column struct {
	Name  string
	Value any
}

// Columns lists the supplied fields in a fixed order. BuilderID is excluded:
// ownership is a filter, never an assignment.
func (p Payload) Columns() []Column {
	var cols []Column
	addString := func(name string, v *string) {
		if v != nil {
			cols = append(cols, Column{Name: name, Value: *v})
		}
	}
	addString("customer_name", p.CustomerName)
	addString("customer_email", p.CustomerEmail)
	addString("customer_phone", p.CustomerPhone)
	addString("property_address", p.PropertyAddress)
	addString("property_city", p.PropertyCity)
	addString("property_state", p.PropertyState)
	addString("property_zip", p.PropertyZip)
	addString("project_name", p.ProjectName)
	if p.SettlementDate != nil {
		cols = append(cols, Column{Name: "settlement_date", Value: *p.SettlementDate})
	}
	addString("notes", p.Notes)
	if p.SelectedItems != nil {
		cols = append(cols, Column{Name: "selected_items", Value: p.SelectedItems})
	}
	if p.DocumentsUploaded != nil {
		cols = append(cols, Column{Name: "documents_uploaded", Value: p.DocumentsUploaded})
	}
	if p.ItemDetails != nil {
		cols = append(cols, Column{Name: "item_details", Value: p.ItemDetails})
	}
	if p.Status != nil {
		cols = append(cols, Column{Name: "status", Value: string(*p.Status)})
	}
	if p.EntitlementSentAt != nil {
		cols = append(cols, Column{Name: "entitlement_sent_at", Value: *p.EntitlementSentAt})
	}
	if p.DeliveredAt != nil {
		cols = append(cols, Column{Name: "delivered_at", Value: *p.DeliveredAt})
	}
	return cols
}

// Apply writes the supplied fields onto r.
func (p Payload) Apply(r *Registration) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&r.CustomerName, p.CustomerName)
	set(&r.CustomerEmail, p.CustomerEmail)
	set(&r.CustomerPhone, p.CustomerPhone)
	set(&r.PropertyAddress, p.PropertyAddress)
	set(&r.PropertyCity, p.PropertyCity)
	set(&r.PropertyState, p.PropertyState)
	set(&r.PropertyZip, p.PropertyZip)
	set(&r.ProjectName, p.ProjectName)
	set(&r.Notes, p.Notes)
	if p.SettlementDate != nil {
		if p.SettlementDate.IsZero() {
			r.SettlementDate = nil
		} else {
			d := *p.SettlementDate
			r.SettlementDate = &d
		}
	}
	if p.SelectedItems != nil {
		r.SelectedItems = cloneStringSlices(p.SelectedItems)
	}
	if p.DocumentsUploaded != nil {
		r.DocumentsUploaded = cloneStringSlices(p.DocumentsUploaded)
	}
	if p.ItemDetails != nil {
		r.ItemDetails = make(map[string]ItemDetail, len(p.ItemDetails))
		for k, v := range p.ItemDetails {
			r.ItemDetails[k] = v
		}
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.EntitlementSentAt != nil {
		t := *p.EntitlementSentAt
		r.EntitlementSentAt = &t
	}
	if p.DeliveredAt != nil {
		t := *p.DeliveredAt
		r.DeliveredAt = &t
	}
}

// IsEmpty reports whether the payload changes nothing.
func (p Payload) IsEmpty() bool {
	return len(p.Columns()) == 0
}

// Ptr is a small helper for building payloads.
func Ptr[T any](v T) *T {
	return &v
}
