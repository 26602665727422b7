package models

import (
	"strings"
	"time"

	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
)

// Status is the lifecycle label of a registration. It only ever advances.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusDocumentsPending Status = "documents_pending"
	StatusReadyForReview   Status = "ready_for_review"
	StatusSent             Status = "sent"
	StatusDelivered        Status = "delivered"
)

var statusRank = map[Status]int{
	StatusDraft:            0,
	StatusDocumentsPending: 1,
	StatusReadyForReview:   2,
	StatusSent:             3,
	StatusDelivered:        4,
}

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank orders statuses; unknown values rank below draft.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// IsSent reports whether the entitlement has already left the builder.
func (s Status) IsSent() bool {
	return s == StatusSent || s == StatusDelivered
}

// MaxStatus returns the further-advanced of two statuses.
func MaxStatus(a, b Status) Status {
	if b.Rank() > a.Rank() {
		return b
	}
	if !a.IsValid() {
		return StatusDraft
	}
	return a
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status "+s)
	}
	return st, nil
}

// ItemDetail is the per-item provenance captured on the documents step.
type ItemDetail struct {
	Seller       string `json:"seller"`
	SerialNumber string `json:"serialNumber"`
}

// Registration is the durable record of one homebuyer's warranty package.
//
// Invariants:
//   - BuilderID never changes after creation
//   - Status never moves backward
//   - EntitlementSentAt is set exactly when Status reaches sent
type Registration struct {
	ID                id.RegistrationID     `json:"id"`
	BuilderID         id.BuilderID          `json:"builder_id"`
	CustomerName      string                `json:"customer_name"`
	CustomerEmail     string                `json:"customer_email"`
	CustomerPhone     string                `json:"customer_phone"`
	PropertyAddress   string                `json:"property_address"`
	PropertyCity      string                `json:"property_city"`
	PropertyState     string                `json:"property_state"`
	PropertyZip       string                `json:"property_zip"`
	ProjectName       string                `json:"project_name"`
	SettlementDate    *Date                 `json:"settlement_date"`
	Notes             string                `json:"notes"`
	SelectedItems     map[string][]string   `json:"selected_items"`
	DocumentsUploaded map[string][]string   `json:"documents_uploaded"`
	ItemDetails       map[string]ItemDetail `json:"item_details"`
	Status            Status                `json:"status"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
	EntitlementSentAt *time.Time            `json:"entitlement_sent_at"`
	DeliveredAt       *time.Time            `json:"delivered_at"`
}

// HasSelectedItems reports whether any category holds at least one item.
func (r *Registration) HasSelectedItems() bool {
	for _, items := range r.SelectedItems {
		if len(items) > 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share maps with a store.
func (r *Registration) Clone() *Registration {
	if r == nil {
		return nil
	}
	out := *r
	out.SelectedItems = cloneStringSlices(r.SelectedItems)
	out.DocumentsUploaded = cloneStringSlices(r.DocumentsUploaded)
	out.ItemDetails = make(map[string]ItemDetail, len(r.ItemDetails))
	for k, v := range r.ItemDetails {
		out.ItemDetails[k] = v
	}
	if r.SettlementDate != nil {
		d := *r.SettlementDate
		out.SettlementDate = &d
	}
	if r.EntitlementSentAt != nil {
		t := *r.EntitlementSentAt
		out.EntitlementSentAt = &t
	}
	if r.DeliveredAt != nil {
		t := *r.DeliveredAt
		out.DeliveredAt = &t
	}
	return &out
}

func cloneStringSlices(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// ListFilter narrows a registration listing. Query matches case-insensitively
// against the customer name, email, property address and project name.
type ListFilter struct {
	Status Status
	Query  string
	Limit  int
	Offset int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
	MaxQueryLength   = 100
)

// Normalize clamps paging values and trims the search text.
func (f ListFilter) Normalize() ListFilter {
	f.Query = strings.TrimSpace(f.Query)
	if len(f.Query) > MaxQueryLength {
		f.Query = f.Query[:MaxQueryLength]
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Matches reports whether r passes the status and search filters.
func (f ListFilter) Matches(r *Registration) bool {
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	for _, field := range []string{r.CustomerName, r.CustomerEmail, r.PropertyAddress, r.ProjectName} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Stats summarizes a builder's registrations for the dashboard.
type Stats struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Pending int `json:"pending"`
	Ready   int `json:"ready"`
}

// NewStats folds per-status counts into dashboard buckets. Delivered
// registrations count as sent.
func NewStats(counts map[Status]int) Stats {
	var st Stats
	for status, n := range counts {
		st.Total += n
		switch status {
		case StatusSent, StatusDelivered:
			st.Sent += n
		case StatusDraft, StatusDocumentsPending:
			st.Pending += n
		case StatusReadyForReview:
			st.Ready += n
		}
	}
	return st
}
