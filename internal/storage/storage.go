// Package storage defines the persistent key-value boundary of the terminal:
// a handful of named collections, each stored as one JSON document that is
// overwritten whole on every change.
package storage

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Collection names a persisted document.
type Collection string

const (
	CollectionCatalog    Collection = "catalog"
	CollectionCart       Collection = "cart"
	CollectionSales      Collection = "sales"
	CollectionReceiptSeq Collection = "receipt_seq"
)

// Collections lists every collection the engine persists.
var Collections = []Collection{
	CollectionCatalog,
	CollectionCart,
	CollectionSales,
	CollectionReceiptSeq,
}

// LeaseName is the single lease row/key guarding a store.
const LeaseName = "terminal"

var (
	ErrNotFound  = errors.New("collection not found")
	ErrLeaseHeld = errors.New("store is in use by another session")
	ErrLeaseLost = errors.New("session lease lost")
)

// Store is the only I/O boundary of the engine.
type Store interface {
	// Load returns the stored document or ErrNotFound.
	Load(ctx context.Context, c Collection) ([]byte, error)
	// Commit writes every document in writes atomically: either all of them
	// become visible or none do.
	Commit(ctx context.Context, writes map[Collection][]byte) error
	Close() error
}

// Leaser is implemented by stores that can guard against two sessions
// mutating the same collections.
type Leaser interface {
	// AcquireLease takes or renews the terminal lease for holder. It fails
	// with ErrLeaseHeld while another holder's lease is unexpired.
	AcquireLease(ctx context.Context, holder string, ttl time.Duration) error
	ReleaseLease(ctx context.Context, holder string) error
}

// Save writes a single collection.
func Save(ctx context.Context, s Store, c Collection, body []byte) error {
	return s.Commit(ctx, map[Collection][]byte{c: body})
}

// Sorted returns the collections of writes in a stable order, so backends
// touch rows in the same sequence on every commit.
func Sorted(writes map[Collection][]byte) []Collection {
	out := make([]Collection, 0, len(writes))
	for c := range writes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
