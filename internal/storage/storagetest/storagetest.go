// Package storagetest holds the behaviour every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises newStore. Each call to newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("LoadMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Load(context.Background(), storage.CollectionSales)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("CommitRoundTrip", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		writes := map[storage.Collection][]byte{
			storage.CollectionCatalog:    []byte(`[{"id":"i1","name":"Choco Pie"}]`),
			storage.CollectionCart:       []byte(`[]`),
			storage.CollectionSales:      []byte(`[]`),
			storage.CollectionReceiptSeq: []byte(`0`),
		}
		require.NoError(t, s.Commit(ctx, writes))
		for c, want := range writes {
			got, err := s.Load(ctx, c)
			require.NoError(t, err, c)
			assert.Equal(t, string(want), string(got), c)
		}
	})

	t.Run("CommitOverwrites", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, storage.Save(ctx, s, storage.CollectionCart, []byte(`[{"item_id":"a"}]`)))
		require.NoError(t, storage.Save(ctx, s, storage.CollectionCart, []byte(`[]`)))
		got, err := s.Load(ctx, storage.CollectionCart)
		require.NoError(t, err)
		assert.Equal(t, `[]`, string(got))
	})

	t.Run("Lease", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		l, ok := s.(storage.Leaser)
		require.True(t, ok, "store implements storage.Leaser")

		require.NoError(t, l.AcquireLease(ctx, "till-1", time.Minute))
		require.NoError(t, l.AcquireLease(ctx, "till-1", time.Minute), "renewal")
		assert.ErrorIs(t, l.AcquireLease(ctx, "till-2", time.Minute), storage.ErrLeaseHeld)

		require.NoError(t, l.ReleaseLease(ctx, "till-2"), "releasing someone else's lease is a no-op")
		assert.ErrorIs(t, l.AcquireLease(ctx, "till-2", time.Minute), storage.ErrLeaseHeld)

		require.NoError(t, l.ReleaseLease(ctx, "till-1"))
		require.NoError(t, l.AcquireLease(ctx, "till-2", time.Minute))
	})
}
