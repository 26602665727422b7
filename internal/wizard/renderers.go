package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/asaskevich/govalidator"

	itemmodels "handover/internal/items/models"
	"handover/internal/registration/models"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	pstrings "handover/pkg/platform/strings"
)

// Advance hands a renderer's validated output to the controller.
type Advance func(Output) error

// Renderer is the uniform contract of a wizard step. View shows the step
// seeded from the accumulated state; Submit validates raw input and calls
// advance at most once. Validation failures never reach the controller.
type Renderer interface {
	Step() Step
	View(ctx context.Context, state State) (any, error)
	Submit(ctx context.Context, state State, raw json.RawMessage, advance Advance) error
}

// Catalog is the item lookup the item-aware steps need.
type Catalog interface {
	List(ctx context.Context, filter itemmodels.ListFilter) ([]*itemmodels.Item, error)
	FindByIDs(ctx context.Context, ids []id.ItemID) ([]*itemmodels.Item, error)
}

// Renderers returns one renderer per step keyed by step.
func Renderers(catalog Catalog) map[Step]Renderer {
	return map[Step]Renderer{
		StepCustomer:  CustomerRenderer{},
		StepItems:     ItemsRenderer{catalog: catalog},
		StepDocuments: DocumentsRenderer{catalog: catalog},
		StepReview:    ReviewRenderer{catalog: catalog},
		StepSend:      SendRenderer{},
	}
}

func decodeStrict(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid step input")
	}
	return nil
}

// --- customer ---

type CustomerRenderer struct{}

type CustomerView struct {
	Customer CustomerDetails `json:"customer"`
}

func (CustomerRenderer) Step() Step { return StepCustomer }

func (CustomerRenderer) View(_ context.Context, state State) (any, error) {
	return CustomerView{Customer: state.Customer}, nil
}

func (CustomerRenderer) Submit(_ context.Context, _ State, raw json.RawMessage, advance Advance) error {
	var in CustomerDetails
	if err := decodeStrict(raw, &in); err != nil {
		return err
	}
	in = normalizeCustomer(in)
	if fields := validateCustomer(in); len(fields) > 0 {
		return dErrors.NewValidation(fields)
	}
	return advance(in)
}

func normalizeCustomer(c CustomerDetails) CustomerDetails {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	c.PropertyAddress = strings.TrimSpace(c.PropertyAddress)
	c.City = strings.TrimSpace(c.City)
	c.State = strings.TrimSpace(c.State)
	c.ZipCode = strings.TrimSpace(c.ZipCode)
	c.ProjectName = strings.TrimSpace(c.ProjectName)
	return c
}

func validateCustomer(c CustomerDetails) map[string]string {
	fields := map[string]string{}
	required := []struct {
		name, value, max string
	}{
		{"firstName", c.FirstName, "100"},
		{"lastName", c.LastName, "100"},
		{"phone", c.Phone, "32"},
		{"propertyAddress", c.PropertyAddress, "255"},
		{"city", c.City, "100"},
		{"state", c.State, "32"},
		{"zipCode", c.ZipCode, "16"},
	}
	for _, f := range required {
		switch {
		case f.value == "":
			fields[f.name] = "is required"
		case !govalidator.StringLength(f.value, "1", f.max):
			fields[f.name] = "must be at most " + f.max + " characters"
		}
	}
	switch {
	case c.Email == "":
		fields["email"] = "is required"
	case !govalidator.IsEmail(c.Email) || !govalidator.StringLength(c.Email, "3", "255"):
		fields["email"] = "must be a valid email address"
	}
	if !govalidator.StringLength(c.ProjectName, "0", "200") {
		fields["projectName"] = "must be at most 200 characters"
	}
	if !govalidator.StringLength(c.Notes, "0", "4000") {
		fields["notes"] = "must be at most 4000 characters"
	}
	return fields
}

// --- items ---

type ItemsRenderer struct {
	catalog Catalog
}

// CategoryGroup is one category of the catalog as offered for selection.
type CategoryGroup struct {
	Category string             `json:"category"`
	Items    []*itemmodels.Item `json:"items"`
}

type ItemsView struct {
	Categories    []CategoryGroup `json:"categories"`
	SelectedItems []string        `json:"selected_items"`
}

type itemsInput struct {
	SelectedItems []string `json:"selected_items"`
}

func (ItemsRenderer) Step() Step { return StepItems }

func (r ItemsRenderer) View(ctx context.Context, state State) (any, error) {
	items, err := r.catalog.List(ctx, itemmodels.ListFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	return ItemsView{Categories: groupItems(items), SelectedItems: slices.Clone(state.Items.SelectedItems)}, nil
}

func (r ItemsRenderer) Submit(ctx context.Context, state State, raw json.RawMessage, advance Advance) error {
	var in itemsInput
	if err := decodeStrict(raw, &in); err != nil {
		return err
	}
	if len(in.SelectedItems) == 0 {
		return dErrors.NewValidation(map[string]string{"selected_items": "select at least one item"})
	}

	ids := make([]id.ItemID, 0, len(in.SelectedItems))
	seen := map[id.ItemID]bool{}
	for _, s := range in.SelectedItems {
		itemID, err := id.ParseItemID(s)
		if err != nil {
			return dErrors.NewValidation(map[string]string{"selected_items": "contains an invalid item id"})
		}
		if !seen[itemID] {
			seen[itemID] = true
			ids = append(ids, itemID)
		}
	}

	found, err := r.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[id.ItemID]*itemmodels.Item, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}

	out := ItemsSelection{SelectedItems: make([]string, 0, len(ids)), Categories: map[string]string{}}
	for _, itemID := range ids {
		item, ok := byID[itemID]
		if !ok {
			return dErrors.NewValidation(map[string]string{"selected_items": "item " + itemID.String() + " does not exist"})
		}
		// Items already on the registration stay selectable after retirement.
		if !item.IsActive() && !slices.Contains(state.Items.SelectedItems, itemID.String()) {
			return dErrors.NewValidation(map[string]string{"selected_items": "item " + item.Name + " is no longer offered"})
		}
		out.SelectedItems = append(out.SelectedItems, itemID.String())
		out.Categories[itemID.String()] = item.Category
	}
	return advance(out)
}

func groupItems(items []*itemmodels.Item) []CategoryGroup {
	var groups []CategoryGroup
	for _, item := range items {
		if n := len(groups); n > 0 && groups[n-1].Category == item.Category {
			groups[n-1].Items = append(groups[n-1].Items, item)
			continue
		}
		groups = append(groups, CategoryGroup{Category: item.Category, Items: []*itemmodels.Item{item}})
	}
	return groups
}

// selectedCatalogItems loads the catalog entries for the state's selection.
func selectedCatalogItems(ctx context.Context, catalog Catalog, state State) ([]*itemmodels.Item, error) {
	ids := make([]id.ItemID, 0, len(state.Items.SelectedItems))
	for _, raw := range state.Items.SelectedItems {
		itemID, err := id.ParseItemID(raw)
		if err != nil {
			continue
		}
		ids = append(ids, itemID)
	}
	if len(ids) == 0 {
		return []*itemmodels.Item{}, nil
	}
	return catalog.FindByIDs(ctx, ids)
}

// --- documents ---

type DocumentsRenderer struct {
	catalog Catalog
}

// DocumentSlot is one selected item awaiting documents.
type DocumentSlot struct {
	ItemID    string            `json:"item_id"`
	Name      string            `json:"name"`
	Category  string            `json:"category"`
	Key       string            `json:"key"`
	Documents []string          `json:"documents"`
	Detail    models.ItemDetail `json:"detail"`
}

type DocumentsView struct {
	Slots         []DocumentSlot `json:"slots"`
	DocumentCount int            `json:"document_count"`
}

func (DocumentsRenderer) Step() Step { return StepDocuments }

func (r DocumentsRenderer) View(ctx context.Context, state State) (any, error) {
	items, err := selectedCatalogItems(ctx, r.catalog, state)
	if err != nil {
		return nil, err
	}
	view := DocumentsView{Slots: make([]DocumentSlot, 0, len(items))}
	for _, item := range items {
		key := item.DocumentKey()
		docs := slices.Clone(state.Documents.Documents[key])
		if docs == nil {
			docs = []string{}
		}
		view.Slots = append(view.Slots, DocumentSlot{
			ItemID:    item.ID.String(),
			Name:      item.Name,
			Category:  item.Category,
			Key:       key,
			Documents: docs,
			Detail:    state.Documents.ItemDetails[item.ID.String()],
		})
		view.DocumentCount += len(docs)
	}
	return view, nil
}

func (r DocumentsRenderer) Submit(ctx context.Context, state State, raw json.RawMessage, advance Advance) error {
	var in DocumentSet
	if err := decodeStrict(raw, &in); err != nil {
		return err
	}
	items, err := selectedCatalogItems(ctx, r.catalog, state)
	if err != nil {
		return err
	}
	keys := map[string]bool{}
	itemIDs := map[string]bool{}
	for _, item := range items {
		keys[item.DocumentKey()] = true
		itemIDs[item.ID.String()] = true
	}

	fields := map[string]string{}
	out := DocumentSet{Documents: map[string][]string{}, ItemDetails: map[string]models.ItemDetail{}}
	for key, docs := range in.Documents {
		if !keys[key] {
			fields["documents."+key] = "does not match a selected item"
			continue
		}
		for _, doc := range docs {
			if !govalidator.StringLength(strings.TrimSpace(doc), "1", "255") {
				fields["documents."+key] = "document names must be 1-255 characters"
				break
			}
		}
		out.Documents[key] = pstrings.DedupeAndTrim(docs)
	}
	for itemID, detail := range in.ItemDetails {
		if !itemIDs[itemID] {
			fields["itemDetails."+itemID] = "does not match a selected item"
			continue
		}
		detail.Seller = strings.TrimSpace(detail.Seller)
		detail.SerialNumber = strings.TrimSpace(detail.SerialNumber)
		if !govalidator.StringLength(detail.Seller, "0", "200") || !govalidator.StringLength(detail.SerialNumber, "0", "100") {
			fields["itemDetails."+itemID] = "seller or serial number too long"
			continue
		}
		out.ItemDetails[itemID] = detail
	}
	if len(fields) > 0 {
		return dErrors.NewValidation(fields)
	}
	return advance(out)
}

// --- review ---

type ReviewRenderer struct {
	catalog Catalog
}

type ReviewView struct {
	RegistrationID id.RegistrationID            `json:"registration_id"`
	Status         models.Status                `json:"status"`
	Customer       CustomerDetails              `json:"customer"`
	Items          []CategoryGroup              `json:"items"`
	Documents      map[string][]string          `json:"documents"`
	ItemDetails    map[string]models.ItemDetail `json:"item_details"`
	DocumentCount  int                          `json:"document_count"`
	Warnings       []string                     `json:"warnings,omitempty"`
}

func (ReviewRenderer) Step() Step { return StepReview }

func (r ReviewRenderer) View(ctx context.Context, state State) (any, error) {
	items, err := selectedCatalogItems(ctx, r.catalog, state)
	if err != nil {
		return nil, err
	}
	view := ReviewView{
		RegistrationID: state.RegistrationID,
		Status:         state.Status,
		Customer:       state.Customer,
		Items:          groupItems(items),
		Documents:      cloneDocuments(state.Documents.Documents),
		ItemDetails:    cloneDetails(state.Documents.ItemDetails),
	}
	for _, docs := range view.Documents {
		view.DocumentCount += len(docs)
	}
	if state.Items.IsEmpty() {
		view.Warnings = append(view.Warnings, "no items selected")
	}
	if state.Documents.IsEmpty() {
		view.Warnings = append(view.Warnings, "no documents attached")
	}
	return view, nil
}

func (ReviewRenderer) Submit(_ context.Context, _ State, raw json.RawMessage, advance Advance) error {
	var in ReviewApproval
	if err := decodeStrict(raw, &in); err != nil {
		return err
	}
	if !in.Approved {
		return dErrors.NewValidation(map[string]string{"approved": "confirm the package is complete before sending"})
	}
	return advance(in)
}

// --- send ---

type SendRenderer struct{}

type SendView struct {
	RegistrationID id.RegistrationID `json:"registration_id"`
	CustomerEmail  string            `json:"customer_email"`
	Status         models.Status     `json:"status"`
}

func (SendRenderer) Step() Step { return StepSend }

func (SendRenderer) View(_ context.Context, state State) (any, error) {
	return SendView{
		RegistrationID: state.RegistrationID,
		CustomerEmail:  state.Customer.Email,
		Status:         state.Status,
	}, nil
}

func (SendRenderer) Submit(context.Context, State, json.RawMessage, Advance) error {
	return ErrTerminal
}
