package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/library-lending/internal/port"
)

func TestMemoryAdapter(t *testing.T) {
	runRepositoryTests(t, func(t *testing.T) repository {
		return NewMemoryAdapter()
	})
}

func TestMemoryAdapter_WithinTxCanceled(t *testing.T) {
	adapter := NewMemoryAdapter()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := adapter.WithinTx(ctx, func(tx port.LendingTx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryAdapter_ReturnsCopies(t *testing.T) {
	adapter := NewMemoryAdapter()
	ctx := context.Background()

	book := newTestBook("Dune", "9780000000001", 1)
	require.NoError(t, adapter.CreateBook(ctx, book))

	got, err := adapter.GetBook(ctx, book.ID)
	require.NoError(t, err)
	got.Quantity = 99

	again, err := adapter.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Quantity)
}
