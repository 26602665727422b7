package models

import (
	"strings"
	"time"

	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
)

// Status marks whether an item can still be offered to homebuyers.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusInactive
}

// DefaultCategory files items that were saved without one.
const DefaultCategory = "Other"

// Item is one product in a builder's catalog (an oven, a hot water system).
type Item struct {
	ID          id.ItemID    `json:"id"`
	BuilderID   id.BuilderID `json:"builder_id"`
	Name        string       `json:"name"`
	Category    string       `json:"category"`
	Brand       string       `json:"brand"`
	Model       string       `json:"model"`
	Description string       `json:"description"`
	Price       *float64     `json:"price"`
	Status      Status       `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NewItem validates invariants and returns an active item.
func NewItem(itemID id.ItemID, builderID id.BuilderID, name, category string, now time.Time) (*Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "item name cannot be empty")
	}
	if builderID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "item must belong to a builder")
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}
	return &Item{
		ID:        itemID,
		BuilderID: builderID,
		Name:      name,
		Category:  category,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (i *Item) IsActive() bool {
	return i.Status == StatusActive
}

// DocumentKey is the composite key documents are filed under for this item.
func (i *Item) DocumentKey() string {
	return DocumentKey(i.Category, i.Name)
}

// DocumentKey joins category and item name the way uploaded documents are keyed.
func DocumentKey(category, name string) string {
	return category + "-" + name
}

// ListFilter narrows a catalog listing.
type ListFilter struct {
	ActiveOnly bool
	Category   string
}
