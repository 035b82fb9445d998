package leads

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewService(store, nil), store
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - new lead starts uncontacted", func(t *testing.T) {
		svc, _ := newTestService(t)

		lead, err := svc.Create(ctx, CreateLeadParams{
			Name:     "Ayşe Demir",
			Language: "tr-TR",
			Email:    " ayse@example.com ",
		})
		require.NoError(t, err)

		assert.NotEmpty(t, lead.ID)
		assert.Equal(t, StatusUncontacted, lead.Status)
		assert.Equal(t, "tr", lead.Language)
		assert.Equal(t, "ayse@example.com", lead.Email)
		assert.Nil(t, lead.AssignedAgentID)
		assert.False(t, lead.CreatedAt.IsZero())
	})

	t.Run("Success - E.164 phone kept as-is", func(t *testing.T) {
		svc, _ := newTestService(t)

		lead, err := svc.Create(ctx, CreateLeadParams{
			Name:     "John Smith",
			Language: "en",
			Phone:    "+14155552671",
		})
		require.NoError(t, err)
		assert.Equal(t, "+14155552671", lead.Phone)
	})

	t.Run("Success - national phone parsed with country hint", func(t *testing.T) {
		svc, _ := newTestService(t)

		lead, err := svc.Create(ctx, CreateLeadParams{
			Name:     "Mehmet Kaya",
			Language: "tr",
			Phone:    "0532 123 45 67",
			Country:  "tr",
		})
		require.NoError(t, err)
		assert.Equal(t, "+905321234567", lead.Phone)
	})

	t.Run("Success - phone is optional", func(t *testing.T) {
		svc, _ := newTestService(t)

		lead, err := svc.Create(ctx, CreateLeadParams{Name: "No Phone", Language: "de"})
		require.NoError(t, err)
		assert.Empty(t, lead.Phone)
	})

	t.Run("Error - missing name", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Create(ctx, CreateLeadParams{Language: "en"})
		assert.ErrorContains(t, err, "name is required")
	})

	t.Run("Error - invalid language code", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Create(ctx, CreateLeadParams{Name: "Bad Lang", Language: "not-a-language"})
		assert.ErrorContains(t, err, "invalid language code")
	})

	t.Run("Error - unparseable phone", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.Create(ctx, CreateLeadParams{
			Name:     "Bad Phone",
			Language: "en",
			Phone:    "not a phone",
		})
		assert.ErrorContains(t, err, "invalid phone number")
	})

	t.Run("Error - well-formed but invalid number", func(t *testing.T) {
		svc, _ := newTestService(t)

		// +1 999 is not an assigned NANP area code.
		_, err := svc.Create(ctx, CreateLeadParams{
			Name:     "Fake Number",
			Language: "en",
			Phone:    "+19995550100",
		})
		assert.ErrorContains(t, err, "invalid phone number")
	})
}

func TestService_UpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - moves through lifecycle states", func(t *testing.T) {
		svc, _ := newTestService(t)
		lead, err := svc.Create(ctx, CreateLeadParams{Name: "Lifecycle", Language: "en"})
		require.NoError(t, err)

		updated, err := svc.UpdateStatus(ctx, lead.ID, StatusHot)
		require.NoError(t, err)
		assert.Equal(t, StatusHot, updated.Status)

		updated, err = svc.UpdateStatus(ctx, lead.ID, StatusSold)
		require.NoError(t, err)
		assert.Equal(t, StatusSold, updated.Status)
	})

	t.Run("Error - unknown status rejected", func(t *testing.T) {
		svc, _ := newTestService(t)
		lead, err := svc.Create(ctx, CreateLeadParams{Name: "Lifecycle", Language: "en"})
		require.NoError(t, err)

		_, err = svc.UpdateStatus(ctx, lead.ID, Status("archived"))
		assert.ErrorContains(t, err, "invalid lead status")

		got, err := svc.Get(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusUncontacted, got.Status)
	})

	t.Run("Error - unknown lead", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.UpdateStatus(ctx, "missing", StatusHot)
		assert.ErrorIs(t, err, ErrLeadNotFound)
	})
}

func TestStatus(t *testing.T) {
	t.Run("Success - terminal statuses block auto reassignment", func(t *testing.T) {
		assert.False(t, StatusSold.AllowsAutoReassign())
		assert.False(t, StatusBlocked.AllowsAutoReassign())
		assert.True(t, StatusUncontacted.AllowsAutoReassign())
		assert.True(t, StatusHot.AllowsAutoReassign())
		assert.True(t, StatusWrongInfo.AllowsAutoReassign())
	})

	t.Run("Success - validity check", func(t *testing.T) {
		assert.True(t, StatusNotInterested.Valid())
		assert.False(t, Status("archived").Valid())
		assert.False(t, Status("").Valid())
	})
}
