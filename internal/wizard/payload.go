package wizard

import (
	"maps"
	"slices"
	"strings"

	itemmodels "handover/internal/items/models"
	"handover/internal/registration/models"
)

// ToRegistrationPayload projects the wizard state onto the registration record
// after step completes. Every column is supplied so that cleared optional
// fields overwrite stale values. The status is the derived status for step,
// never lower than the last persisted one.
func ToRegistrationPayload(state State, step Step) models.Payload {
	c := state.Customer
	settlement := c.SettlementDate
	status := models.MaxStatus(state.Status, deriveStatus(state, step))

	return models.Payload{
		CustomerName:      models.Ptr(joinName(c.FirstName, c.LastName)),
		CustomerEmail:     models.Ptr(strings.TrimSpace(c.Email)),
		CustomerPhone:     models.Ptr(strings.TrimSpace(c.Phone)),
		PropertyAddress:   models.Ptr(strings.TrimSpace(c.PropertyAddress)),
		PropertyCity:      models.Ptr(strings.TrimSpace(c.City)),
		PropertyState:     models.Ptr(strings.TrimSpace(c.State)),
		PropertyZip:       models.Ptr(strings.TrimSpace(c.ZipCode)),
		ProjectName:       models.Ptr(strings.TrimSpace(c.ProjectName)),
		SettlementDate:    &settlement,
		Notes:             models.Ptr(c.Notes),
		SelectedItems:     groupByCategory(state.Items),
		DocumentsUploaded: cloneDocuments(state.Documents.Documents),
		ItemDetails:       cloneDetails(state.Documents.ItemDetails),
		Status:            &status,
	}
}

func deriveStatus(state State, step Step) models.Status {
	switch {
	case step == StepDocuments && !state.Documents.IsEmpty():
		return models.StatusReadyForReview
	case step == StepItems && !state.Items.IsEmpty():
		return models.StatusDocumentsPending
	default:
		return models.StatusDraft
	}
}

// joinName space-joins whichever name parts are present.
func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// splitName splits on the first space: first name, then everything else.
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	first, rest, _ := strings.Cut(full, " ")
	return first, strings.TrimSpace(rest)
}

func groupByCategory(sel ItemsSelection) map[string][]string {
	out := map[string][]string{}
	for _, itemID := range sel.SelectedItems {
		category := sel.Categories[itemID]
		if category == "" {
			category = itemmodels.DefaultCategory
		}
		if !slices.Contains(out[category], itemID) {
			out[category] = append(out[category], itemID)
		}
	}
	for _, ids := range out {
		slices.Sort(ids)
	}
	return out
}

func cloneDocuments(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
		if out[k] == nil {
			out[k] = []string{}
		}
	}
	return out
}

func cloneDetails(in map[string]models.ItemDetail) map[string]models.ItemDetail {
	out := maps.Clone(in)
	if out == nil {
		out = map[string]models.ItemDetail{}
	}
	return out
}

// StateFromRegistration rebuilds the working copy from a persisted record.
func StateFromRegistration(r *models.Registration) State {
	first, last := splitName(r.CustomerName)
	state := State{
		RegistrationID: r.ID,
		Status:         r.Status,
		Customer: CustomerDetails{
			FirstName:       first,
			LastName:        last,
			Email:           r.CustomerEmail,
			Phone:           r.CustomerPhone,
			PropertyAddress: r.PropertyAddress,
			City:            r.PropertyCity,
			State:           r.PropertyState,
			ZipCode:         r.PropertyZip,
			ProjectName:     r.ProjectName,
			Notes:           r.Notes,
		},
		Items: ItemsSelection{
			SelectedItems: []string{},
			Categories:    map[string]string{},
		},
		Documents: DocumentSet{
			Documents:   cloneDocuments(r.DocumentsUploaded),
			ItemDetails: cloneDetails(r.ItemDetails),
		},
	}
	if r.SettlementDate != nil {
		state.Customer.SettlementDate = *r.SettlementDate
	}

	for _, category := range slices.Sorted(maps.Keys(r.SelectedItems)) {
		for _, itemID := range r.SelectedItems[category] {
			if _, seen := state.Items.Categories[itemID]; seen {
				continue
			}
			state.Items.SelectedItems = append(state.Items.SelectedItems, itemID)
			state.Items.Categories[itemID] = category
		}
	}
	return state
}
