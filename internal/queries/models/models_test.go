package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "handover/pkg/domain"
	dErrors "handover/pkg/domain-errors"
)

func newOpenQuery(t *testing.T, now time.Time) *Query {
	t.Helper()
	q, err := NewQuery(id.NewQueryID(), id.BuilderID(uuid.New()), id.NewRegistrationID(), " Oven ", " It will not heat. ", now)
	require.NoError(t, err)
	return q
}

func TestNewQuery(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	q := newOpenQuery(t, now)
	assert.Equal(t, "Oven", q.Subject)
	assert.Equal(t, "It will not heat.", q.Message)
	assert.Equal(t, StatusOpen, q.Status)
	assert.Nil(t, q.RespondedAt)

	_, err := NewQuery(id.NewQueryID(), id.BuilderID(uuid.New()), id.NewRegistrationID(), "Oven", "  ", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewQuery(id.NewQueryID(), id.BuilderID(uuid.New()), id.RegistrationID{}, "Oven", "Broken", now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func TestRespond(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	t.Run("stamps response and time", func(t *testing.T) {
		q := newOpenQuery(t, now)
		require.NoError(t, q.Respond("  A technician will call.  ", later))
		assert.Equal(t, "A technician will call.", q.Response)
		assert.Equal(t, StatusResponded, q.Status)
		require.NotNil(t, q.RespondedAt)
		assert.Equal(t, later, *q.RespondedAt)
		assert.Equal(t, later, q.UpdatedAt)
	})

	t.Run("blank response is a validation error", func(t *testing.T) {
		q := newOpenQuery(t, now)
		err := q.Respond("   ", later)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Equal(t, StatusOpen, q.Status)
	})

	t.Run("closed query refuses responses", func(t *testing.T) {
		q := newOpenQuery(t, now)
		q.Close(later)
		err := q.Respond("Too late", later)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Empty(t, q.Response)
	})
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("responded")
	require.NoError(t, err)
	assert.Equal(t, StatusResponded, st)

	_, err = ParseStatus("pending")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
