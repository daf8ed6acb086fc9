package storage

import (
	"context"

	"cultivar/pkg/domainerrors"
)

var (
	// ErrNotFound keeps missing-key semantics consistent across the memory,
	// badger, and redis implementations.
	ErrNotFound = domainerrors.New(domainerrors.CodeNotFound, "key not found")
)

// Store is the durable key-value contract the persisted state engine builds
// on. Implementations are interface-driven so domain code can swap an
// embedded, in-memory, or external backend without rewiring.
//
// Callers treat writes as best-effort flushes of an authoritative in-memory
// cache; a Store does not need to provide transactions across keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}
