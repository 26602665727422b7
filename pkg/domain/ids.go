// Package domain holds the typed identifiers shared across modules.
//
// Each identifier is a distinct named type over uuid.UUID so that a builder ID can
// never be passed where a registration ID is expected. Parse functions are the
// trust boundary for identifiers arriving from HTTP paths, tokens and payloads.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "handover/pkg/domain-errors"
)

type (
	// BuilderID identifies the builder organisation that owns registrations and items.
	BuilderID uuid.UUID
	// UserID identifies the authenticated builder staff member.
	UserID uuid.UUID
	// RegistrationID identifies a homeowner registration.
	RegistrationID uuid.UUID
	// ItemID identifies an item in a builder's catalog.
	ItemID uuid.UUID
	// WizardID identifies a live onboarding wizard session.
	WizardID uuid.UUID
	// QueryID identifies a homeowner's question to their builder.
	QueryID uuid.UUID
)

func (id BuilderID) String() string      { return uuid.UUID(id).String() }
func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id ItemID) String() string         { return uuid.UUID(id).String() }
func (id WizardID) String() string       { return uuid.UUID(id).String() }
func (id QueryID) String() string        { return uuid.UUID(id).String() }

func (id BuilderID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ItemID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id WizardID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id QueryID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }

func (id BuilderID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id RegistrationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ItemID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id WizardID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id QueryID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }

func (id *BuilderID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RegistrationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ItemID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *WizardID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *QueryID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }

// NewRegistrationID returns a fresh random registration ID.
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }

// NewItemID returns a fresh random item ID.
func NewItemID() ItemID { return ItemID(uuid.New()) }

// NewWizardID returns a fresh random wizard session ID.
func NewWizardID() WizardID { return WizardID(uuid.New()) }

// NewQueryID returns a fresh random homeowner query ID.
func NewQueryID() QueryID { return QueryID(uuid.New()) }

func ParseBuilderID(s string) (BuilderID, error) {
	u, err := parseUUID(s, "builder_id")
	return BuilderID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration_id")
	return RegistrationID(u), err
}

func ParseItemID(s string) (ItemID, error) {
	u, err := parseUUID(s, "item_id")
	return ItemID(u), err
}

func ParseWizardID(s string) (WizardID, error) {
	u, err := parseUUID(s, "wizard_id")
	return WizardID(u), err
}

func ParseQueryID(s string) (QueryID, error) {
	u, err := parseUUID(s, "query_id")
	return QueryID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs.
func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}
