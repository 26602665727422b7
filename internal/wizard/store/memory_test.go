package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"handover/internal/registration/models"
	"handover/internal/wizard"
	id "handover/pkg/domain"
	"handover/pkg/platform/sentinel"
)

func testSnapshot() wizard.Snapshot {
	return wizard.Snapshot{
		WizardID:  id.NewWizardID(),
		BuilderID: id.BuilderID(uuid.New()),
		Step:      wizard.StepDocuments,
		State: wizard.State{
			RegistrationID: id.NewRegistrationID(),
			Status:         models.StatusDocumentsPending,
			Customer:       wizard.CustomerDetails{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com"},
			Items: wizard.ItemsSelection{
				SelectedItems: []string{"itemA"},
				Categories:    map[string]string{"itemA": "Kitchen"},
			},
		},
	}
}

func TestInMemorySaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory(time.Hour)
	snap := testSnapshot()

	require.NoError(t, s.Save(ctx, snap))
	loaded, err := s.Load(ctx, snap.WizardID)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepDocuments, loaded.Step)
	assert.Equal(t, snap.State.RegistrationID, loaded.State.RegistrationID)

	loaded.State.Items.SelectedItems[0] = "mutated"
	again, err := s.Load(ctx, snap.WizardID)
	require.NoError(t, err)
	assert.Equal(t, "itemA", again.State.Items.SelectedItems[0])

	require.NoError(t, s.Delete(ctx, snap.WizardID))
	_, err = s.Load(ctx, snap.WizardID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewInMemory(time.Minute)
	s.now = func() time.Time { return now }

	snap := testSnapshot()
	require.NoError(t, s.Save(ctx, snap))

	now = now.Add(2 * time.Minute)
	_, err := s.Load(ctx, snap.WizardID)
	assert.ErrorIs(t, err, sentinel.ErrExpired)

	require.NoError(t, s.Save(ctx, testSnapshot()))
	assert.Len(t, s.entries, 1, "expired entries are dropped on write")
}
