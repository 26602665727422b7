package handler

import (
	"strings"

	"github.com/asaskevich/govalidator"

	"handover/internal/items/models"
	"handover/internal/items/service"
	dErrors "handover/pkg/domain-errors"
)

// ItemRequest is the body of POST /items and PATCH /items/{id}.
type ItemRequest struct {
	Name        *string  `json:"name"`
	Category    *string  `json:"category"`
	Brand       *string  `json:"brand"`
	Model       *string  `json:"model"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Status      *string  `json:"status"`

	requireName bool
}

// CreateItemRequest requires a name.
type CreateItemRequest struct {
	ItemRequest
}

func (r *CreateItemRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.requireName = true
	return r.ItemRequest.Validate()
}

// UpdateItemRequest accepts any subset of fields.
type UpdateItemRequest struct {
	ItemRequest
}

func (r *UpdateItemRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return r.ItemRequest.Validate()
}

func (r *ItemRequest) Validate() error {
	fields := map[string]string{}
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
	}
	if r.requireName && (r.Name == nil || *r.Name == "") {
		fields["name"] = "is required"
	} else if r.Name != nil && !govalidator.StringLength(*r.Name, "1", "200") {
		fields["name"] = "must be 1-200 characters"
	}
	checkLen := func(field string, v *string, max string) {
		if v != nil && !govalidator.StringLength(*v, "0", max) {
			fields[field] = "must be at most " + max + " characters"
		}
	}
	checkLen("category", r.Category, "100")
	checkLen("brand", r.Brand, "100")
	checkLen("model", r.Model, "100")
	checkLen("description", r.Description, "2000")
	if r.Price != nil && *r.Price < 0 {
		fields["price"] = "must not be negative"
	}
	if r.Status != nil && !models.Status(*r.Status).IsValid() {
		fields["status"] = "must be active or inactive"
	}
	if len(fields) > 0 {
		return dErrors.NewValidation(fields)
	}
	return nil
}

func (r *ItemRequest) toInput() service.ItemInput {
	in := service.ItemInput{
		Name:        r.Name,
		Category:    r.Category,
		Brand:       r.Brand,
		Model:       r.Model,
		Description: r.Description,
		Price:       r.Price,
	}
	if r.Status != nil {
		st := models.Status(*r.Status)
		in.Status = &st
	}
	return in
}
