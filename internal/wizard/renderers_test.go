package wizard

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	itemmodels "handover/internal/items/models"
	itemservice "handover/internal/items/service"
	itemstore "handover/internal/items/store"
	"handover/internal/registration/models"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	"handover/pkg/requestcontext"
)

type RenderersSuite struct {
	suite.Suite
	ctx       context.Context
	catalog   *itemservice.Service
	renderers map[Step]Renderer
	oven      *itemmodels.Item
	fridge    *itemmodels.Item
	retired   *itemmodels.Item
	advanced  []Output
}

func TestRenderersSuite(t *testing.T) {
	suite.Run(t, new(RenderersSuite))
}

func (s *RenderersSuite) SetupTest() {
	s.ctx = requestcontext.WithBuilderID(context.Background(), id.BuilderID(uuid.New()))
	s.catalog = itemservice.New(itemstore.NewInMemory())
	s.renderers = Renderers(s.catalog)
	s.advanced = nil

	s.oven = s.createItem("Oven", "Kitchen", nil)
	s.fridge = s.createItem("Fridge", "Kitchen", nil)
	inactive := itemmodels.StatusInactive
	s.retired = s.createItem("Dryer", "Laundry", &inactive)
}

func (s *RenderersSuite) createItem(name, category string, status *itemmodels.Status) *itemmodels.Item {
	item, err := s.catalog.Create(s.ctx, itemservice.ItemInput{Name: &name, Category: &category, Status: status})
	s.Require().NoError(err)
	return item
}

func (s *RenderersSuite) advance(out Output) error {
	s.advanced = append(s.advanced, out)
	return nil
}

func (s *RenderersSuite) submit(step Step, state State, body any) error {
	raw, err := json.Marshal(body)
	s.Require().NoError(err)
	return s.renderers[step].Submit(s.ctx, state, raw, s.advance)
}

func (s *RenderersSuite) selected(items ...*itemmodels.Item) State {
	state := State{Items: ItemsSelection{Categories: map[string]string{}}}
	for _, item := range items {
		state.Items.SelectedItems = append(state.Items.SelectedItems, item.ID.String())
		state.Items.Categories[item.ID.String()] = item.Category
	}
	return state
}

func (s *RenderersSuite) TestEveryStepHasARenderer() {
	for _, step := range Steps {
		r, ok := s.renderers[step]
		s.Require().True(ok, step)
		s.Equal(step, r.Step())
	}
}

func (s *RenderersSuite) TestCustomerSubmit() {
	s.Run("valid input is normalized and advanced", func() {
		s.advanced = nil
		err := s.submit(StepCustomer, State{}, map[string]any{
			"firstName":       "  Jane ",
			"lastName":        "Doe",
			"email":           "Jane@Example.com ",
			"phone":           "0412 345 678",
			"propertyAddress": "1 Test St",
			"city":            "Testville",
			"state":           "NSW",
			"zipCode":         "2000",
			"settlementDate":  "2026-08-01",
		})
		s.Require().NoError(err)
		s.Require().Len(s.advanced, 1)
		out := s.advanced[0].(CustomerDetails)
		s.Equal("Jane", out.FirstName)
		s.Equal("jane@example.com", out.Email)
		s.Equal("2026-08-01", out.SettlementDate.String())
	})

	s.Run("missing fields never advance", func() {
		s.advanced = nil
		err := s.submit(StepCustomer, State{}, map[string]any{"firstName": "Jane", "email": "not-an-email"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.advanced)

		var derr *dErrors.Error
		s.Require().ErrorAs(err, &derr)
		s.Contains(derr.Fields, "lastName")
		s.Contains(derr.Fields, "email")
		s.NotContains(derr.Fields, "firstName")
	})

	s.Run("unknown fields are rejected", func() {
		err := s.submit(StepCustomer, State{}, map[string]any{"firstName": "Jane", "builder_id": "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("empty body", func() {
		err := s.renderers[StepCustomer].Submit(s.ctx, State{}, nil, s.advance)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *RenderersSuite) TestItemsView() {
	view, err := s.renderers[StepItems].View(s.ctx, s.selected(s.oven))
	s.Require().NoError(err)

	items := view.(ItemsView)
	s.Require().Len(items.Categories, 1, "inactive items are not offered")
	s.Equal("Kitchen", items.Categories[0].Category)
	s.Len(items.Categories[0].Items, 2)
	s.Equal([]string{s.oven.ID.String()}, items.SelectedItems)
}

func (s *RenderersSuite) TestItemsSubmit() {
	s.Run("selection carries categories and drops duplicates", func() {
		s.advanced = nil
		err := s.submit(StepItems, State{}, map[string]any{
			"selected_items": []string{s.oven.ID.String(), s.fridge.ID.String(), s.oven.ID.String()},
		})
		s.Require().NoError(err)
		out := s.advanced[0].(ItemsSelection)
		s.Equal([]string{s.oven.ID.String(), s.fridge.ID.String()}, out.SelectedItems)
		s.Equal("Kitchen", out.Categories[s.fridge.ID.String()])
	})

	s.Run("empty selection", func() {
		err := s.submit(StepItems, State{}, map[string]any{"selected_items": []string{}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown item", func() {
		err := s.submit(StepItems, State{}, map[string]any{"selected_items": []string{uuid.NewString()}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("malformed id", func() {
		err := s.submit(StepItems, State{}, map[string]any{"selected_items": []string{"oven"}})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("retired item only when already selected", func() {
		body := map[string]any{"selected_items": []string{s.retired.ID.String()}}
		s.True(dErrors.HasCode(s.submit(StepItems, State{}, body), dErrors.CodeValidation))

		s.advanced = nil
		s.Require().NoError(s.submit(StepItems, s.selected(s.retired), body))
		s.Len(s.advanced, 1)
	})
}

func (s *RenderersSuite) TestDocumentsView() {
	state := s.selected(s.oven, s.fridge)
	state.Documents = DocumentSet{
		Documents:   map[string][]string{"Kitchen-Oven": {"oven-warranty.pdf", "oven-manual.pdf"}},
		ItemDetails: map[string]models.ItemDetail{s.oven.ID.String(): {Seller: "Appliance Co"}},
	}

	view, err := s.renderers[StepDocuments].View(s.ctx, state)
	s.Require().NoError(err)
	docs := view.(DocumentsView)
	s.Require().Len(docs.Slots, 2)
	s.Equal(2, docs.DocumentCount)
	s.Equal("Kitchen-Fridge", docs.Slots[0].Key)
	s.Empty(docs.Slots[0].Documents)
	s.Equal("Appliance Co", docs.Slots[1].Detail.Seller)
}

func (s *RenderersSuite) TestDocumentsSubmit() {
	state := s.selected(s.oven)

	s.Run("keys must match the selection", func() {
		s.advanced = nil
		err := s.submit(StepDocuments, state, map[string]any{
			"documents": map[string][]string{"Kitchen-Fridge": {"fridge.pdf"}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Empty(s.advanced)
	})

	s.Run("details must reference selected items", func() {
		err := s.submit(StepDocuments, state, map[string]any{
			"itemDetails": map[string]any{s.fridge.ID.String(): map[string]string{"seller": "x"}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("names are trimmed and deduplicated", func() {
		s.advanced = nil
		err := s.submit(StepDocuments, state, map[string]any{
			"documents":   map[string][]string{"Kitchen-Oven": {" oven.pdf", "oven.pdf "}},
			"itemDetails": map[string]any{s.oven.ID.String(): map[string]string{"serialNumber": " SN-1 "}},
		})
		s.Require().NoError(err)
		out := s.advanced[0].(DocumentSet)
		s.Equal([]string{"oven.pdf"}, out.Documents["Kitchen-Oven"])
		s.Equal("SN-1", out.ItemDetails[s.oven.ID.String()].SerialNumber)
	})

	s.Run("blank document name", func() {
		err := s.submit(StepDocuments, state, map[string]any{
			"documents": map[string][]string{"Kitchen-Oven": {"  "}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RenderersSuite) TestReview() {
	view, err := s.renderers[StepReview].View(s.ctx, State{Customer: janeDoe()})
	s.Require().NoError(err)
	review := view.(ReviewView)
	s.Equal([]string{"no items selected", "no documents attached"}, review.Warnings)

	s.advanced = nil
	err = s.submit(StepReview, State{}, map[string]any{"approved": false})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Empty(s.advanced)

	s.Require().NoError(s.submit(StepReview, State{}, map[string]any{"approved": true}))
	s.Equal(ReviewApproval{Approved: true}, s.advanced[0])
}

func (s *RenderersSuite) TestSendIsTerminal() {
	s.ErrorIs(s.submit(StepSend, State{}, map[string]any{}), ErrTerminal)

	view, err := s.renderers[StepSend].View(s.ctx, State{Customer: janeDoe(), Status: models.StatusSent})
	s.Require().NoError(err)
	s.Equal("jane@example.com", view.(SendView).CustomerEmail)
}
