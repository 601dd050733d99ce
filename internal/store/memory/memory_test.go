package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventpoints/backend/internal/models"
	"github.com/eventpoints/backend/internal/store"
)

func TestStore_FirstOrCreateRegistration(t *testing.T) {
	s := New()
	ctx := context.Background()

	a := &models.Registration{UserID: 1, EventID: 2, Name: "a"}
	created, err := s.FirstOrCreateRegistration(ctx, a)
	require.NoError(t, err)
	assert.True(t, created)

	b := &models.Registration{UserID: 1, EventID: 2, Name: "b"}
	created, err = s.FirstOrCreateRegistration(ctx, b)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "a", b.Name)
}

func TestStore_ClaimAward(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutRegistration(models.Registration{ID: 5, UserID: 1, EventID: 2})

	ok, err := s.ClaimAward(ctx, 5, 50, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimAward(ctx, 5, 60, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	reg, err := s.GetRegistrationByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 50, reg.AwardedPoints)
	assert.NotNil(t, reg.AwardedAt)

	_, err = s.ClaimAward(ctx, 6, 10, time.Now())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_GetRegistrationByID_ReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutRegistration(models.Registration{ID: 1, UserID: 1, EventID: 1})

	reg, err := s.GetRegistrationByID(ctx, 1)
	require.NoError(t, err)
	reg.AwardedPoints = 99

	again, err := s.GetRegistrationByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, again.AwardedPoints)
}

func TestStore_Ledger(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutUser(models.User{ID: 7})

	_, err := s.AddPoints(ctx, 7, 10)
	require.NoError(t, err)
	_, err = s.AddPoints(ctx, 7, 15)
	require.NoError(t, err)

	bal, err := s.Balance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 25, bal)

	_, err = s.AddPoints(ctx, 7, -1)
	assert.ErrorIs(t, err, store.ErrInvalidPoints)
	_, err = s.Balance(ctx, 8)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
