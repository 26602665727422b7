package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"handover/internal/items/models"
	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
	"handover/pkg/platform/sentinel"
	"handover/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, item *models.Item) error
	FindByID(ctx context.Context, builderID id.BuilderID, itemID id.ItemID) (*models.Item, error)
	FindByIDs(ctx context.Context, builderID id.BuilderID, ids []id.ItemID) ([]*models.Item, error)
	List(ctx context.Context, builderID id.BuilderID, filter models.ListFilter) ([]*models.Item, error)
	Delete(ctx context.Context, builderID id.BuilderID, itemID id.ItemID) error
}

// Service manages a builder's item catalog.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ItemInput carries the editable fields of an item. Nil means unchanged on update.
type ItemInput struct {
	Name        *string
	Category    *string
	Brand       *string
	Model       *string
	Description *string
	Price       *float64
	Status      *models.Status
}

func (s *Service) Create(ctx context.Context, in ItemInput) (*models.Item, error) {
	builderID, err := builderFrom(ctx)
	if err != nil {
		return nil, err
	}
	item, err := models.NewItem(id.NewItemID(), builderID, deref(in.Name), deref(in.Category), requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	applyOptional(item, in)
	if err := s.store.Create(ctx, item); err != nil {
		return nil, s.storeError(ctx, err, "failed to create item")
	}
	s.logger.InfoContext(ctx, "item created",
		"request_id", requestcontext.RequestID(ctx),
		"item_id", item.ID,
		"category", item.Category,
	)
	return item, nil
}

func (s *Service) Get(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	builderID, err := builderFrom(ctx)
	if err != nil {
		return nil, err
	}
	item, err := s.store.FindByID(ctx, builderID, itemID)
	if err != nil {
		return nil, s.storeError(ctx, err, "failed to load item")
	}
	return item, nil
}

// List returns the catalog ordered by category then name.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Item, error) {
	builderID, err := builderFrom(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.store.List(ctx, builderID, filter)
	if err != nil {
		return nil, s.storeError(ctx, err, "failed to list items")
	}
	return items, nil
}

// FindByIDs returns the builder's items among ids. Unknown or foreign ids are
// silently skipped; callers compare lengths when every id must resolve.
func (s *Service) FindByIDs(ctx context.Context, ids []id.ItemID) ([]*models.Item, error) {
	builderID, err := builderFrom(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Item{}, nil
	}
	items, err := s.store.FindByIDs(ctx, builderID, ids)
	if err != nil {
		return nil, s.storeError(ctx, err, "failed to load items")
	}
	return items, nil
}

func (s *Service) Update(ctx context.Context, itemID id.ItemID, in ItemInput) (*models.Item, error) {
	item, err := s.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, dErrors.NewValidation(map[string]string{"name": "is required"})
		}
		item.Name = name
	}
	if in.Category != nil {
		item.Category = strings.TrimSpace(*in.Category)
		if item.Category == "" {
			item.Category = models.DefaultCategory
		}
	}
	applyOptional(item, in)
	item.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, item); err != nil {
		return nil, s.storeError(ctx, err, "failed to update item")
	}
	return item, nil
}

func (s *Service) Delete(ctx context.Context, itemID id.ItemID) error {
	builderID, err := builderFrom(ctx)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, builderID, itemID); err != nil {
		return s.storeError(ctx, err, "failed to delete item")
	}
	return nil
}

func (s *Service) storeError(ctx context.Context, err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "item not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "item already exists")
	default:
		s.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
}

func builderFrom(ctx context.Context) (id.BuilderID, error) {
	builderID := requestcontext.BuilderID(ctx)
	if builderID.IsNil() {
		return builderID, dErrors.New(dErrors.CodeUnauthorized, "builder identity required")
	}
	return builderID, nil
}

func applyOptional(item *models.Item, in ItemInput) {
	if in.Brand != nil {
		item.Brand = strings.TrimSpace(*in.Brand)
	}
	if in.Model != nil {
		item.Model = strings.TrimSpace(*in.Model)
	}
	if in.Description != nil {
		item.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		p := *in.Price
		item.Price = &p
	}
	if in.Status != nil {
		item.Status = *in.Status
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
