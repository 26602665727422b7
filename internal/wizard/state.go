package wizard

import (
	"maps"
	"slices"

	"handover/internal/registration/models"
	id "handover/pkg/domain"
)

// Output is the validated result a step renderer hands to the controller.
type Output interface {
	Step() Step
}

// CustomerDetails is the output of the customer step.
type CustomerDetails struct {
	FirstName       string      `json:"firstName"`
	LastName        string      `json:"lastName"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	PropertyAddress string      `json:"propertyAddress"`
	City            string      `json:"city"`
	State           string      `json:"state"`
	ZipCode         string      `json:"zipCode"`
	ProjectName     string      `json:"projectName"`
	SettlementDate  models.Date `json:"settlementDate"`
	Notes           string      `json:"notes"`
}

func (CustomerDetails) Step() Step { return StepCustomer }

// ItemsSelection is the output of the items step. Categories maps each selected
// item id to its catalog category so the selection can be grouped when persisted.
type ItemsSelection struct {
	SelectedItems []string          `json:"selected_items"`
	Categories    map[string]string `json:"categories"`
}

func (ItemsSelection) Step() Step { return StepItems }

func (s ItemsSelection) IsEmpty() bool { return len(s.SelectedItems) == 0 }

func (s ItemsSelection) clone() ItemsSelection {
	return ItemsSelection{
		SelectedItems: slices.Clone(s.SelectedItems),
		Categories:    maps.Clone(s.Categories),
	}
}

// DocumentSet is the output of the documents step. Documents are keyed by
// "category-itemName"; ItemDetails by item id.
type DocumentSet struct {
	Documents   map[string][]string          `json:"documents"`
	ItemDetails map[string]models.ItemDetail `json:"itemDetails"`
}

func (DocumentSet) Step() Step { return StepDocuments }

// IsEmpty reports whether no document reference was attached.
func (d DocumentSet) IsEmpty() bool {
	for _, docs := range d.Documents {
		if len(docs) > 0 {
			return false
		}
	}
	return true
}

func (d DocumentSet) clone() DocumentSet {
	out := DocumentSet{
		Documents:   make(map[string][]string, len(d.Documents)),
		ItemDetails: maps.Clone(d.ItemDetails),
	}
	for k, v := range d.Documents {
		out.Documents[k] = slices.Clone(v)
	}
	return out
}

// ReviewApproval is the output of the review step. Approved is the explicit
// human confirmation that gates sending.
type ReviewApproval struct {
	Approved bool `json:"approved"`
}

func (ReviewApproval) Step() Step { return StepReview }

// State is the builder-side working copy accumulated across steps.
type State struct {
	RegistrationID id.RegistrationID `json:"registration_id"`
	Status         models.Status     `json:"status"`
	Customer       CustomerDetails   `json:"customer"`
	Items          ItemsSelection    `json:"items"`
	Documents      DocumentSet       `json:"documents"`
}

// Clone returns a deep copy. Renderers and callers only ever see copies.
func (s State) Clone() State {
	out := s
	out.Items = s.Items.clone()
	out.Documents = s.Documents.clone()
	return out
}

// With returns a copy of s with the step output merged in.
func (s State) With(out Output) State {
	next := s.Clone()
	switch o := out.(type) {
	case CustomerDetails:
		next.Customer = o
	case ItemsSelection:
		next.Items = o.clone()
	case DocumentSet:
		next.Documents = o.clone()
	}
	return next
}
