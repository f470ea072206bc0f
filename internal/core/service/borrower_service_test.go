package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/library-lending/internal/adapter/storage"
	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
)

func TestBorrowerService_Lifecycle(t *testing.T) {
	svc := service.NewBorrowerService(storage.NewMemoryAdapter())
	ctx := context.Background()

	phone := "555-0100"
	ada, err := svc.Create(ctx, domain.NewBorrower{Name: "Ada", Email: "ada@example.com", Phone: &phone})
	require.NoError(t, err)
	_, err = uuid.Parse(ada.ID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.NewBorrower{Name: "Other Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, domain.ErrDuplicateBorrower)

	got, err := svc.Get(ctx, ada.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Phone)
	assert.Equal(t, "555-0100", *got.Phone)

	name := "Ada Lovelace"
	updated, err := svc.Update(ctx, ada.ID, domain.BorrowerPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.Equal(t, "ada@example.com", updated.Email)
	require.NotNil(t, updated.Phone)

	cleared := ""
	updated, err = svc.Update(ctx, ada.ID, domain.BorrowerPatch{Phone: &cleared})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", updated.Name)
	assert.Nil(t, updated.Phone)

	borrowers, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, borrowers, 1)

	require.NoError(t, svc.Delete(ctx, ada.ID))
	_, err = svc.Get(ctx, ada.ID)
	assert.ErrorIs(t, err, domain.ErrBorrowerNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, ada.ID), domain.ErrBorrowerNotFound)
}

func TestBorrowerService_EmptyPhoneIsUnset(t *testing.T) {
	svc := service.NewBorrowerService(storage.NewMemoryAdapter())

	empty := ""
	borrower, err := svc.Create(context.Background(), domain.NewBorrower{Name: "Bob", Email: "bob@example.com", Phone: &empty})
	require.NoError(t, err)
	assert.Nil(t, borrower.Phone)
}

func TestBorrowerService_MalformedID(t *testing.T) {
	svc := service.NewBorrowerService(storage.NewMemoryAdapter())
	ctx := context.Background()

	_, err := svc.Get(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrBorrowerNotFound)

	name := "x"
	_, err = svc.Update(ctx, "abc", domain.BorrowerPatch{Name: &name})
	assert.ErrorIs(t, err, domain.ErrBorrowerNotFound)
}
