// Package storage provides abstractions for persistent group storage.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carlo-colombo/cashsplitter/internal/models"
)

var (
	// ErrNotFound is returned when no group is stored under an identity.
	ErrNotFound = errors.New("group not found")
	// ErrInvalidKey is returned for keys that are not UUIDs.
	ErrInvalidKey = errors.New("invalid group key")
)

// groupNamespace seeds the UUIDv5 keys derived from group identities.
var groupNamespace = uuid.MustParse("9b0c3c1e-58a2-4c57-9a7e-3f7a1d1f0c21")

// Store defines the interface for group storage operations.
// This abstraction allows swapping storage backends (SQLite, in-memory, etc.)
// without changing the core, which only deals in models.Group values.
type Store interface {
	// Get retrieves the group with the given identity.
	// Returns ErrNotFound if it is absent.
	Get(ctx context.Context, id models.Identity) (models.Group, error)

	// Put stores g, replacing any previous copy with the same identity.
	Put(ctx context.Context, g models.Group) error

	// List returns the identities of every stored group.
	List(ctx context.Context) ([]models.Identity, error)

	// Delete removes the group with the given identity.
	// Returns ErrNotFound if it is absent.
	Delete(ctx context.Context, id models.Identity) error

	// Close releases any resources held by the store.
	Close() error
}

// Key returns the stable, URL-safe key of a group identity: a UUIDv5 over
// the description and timestamp.
func Key(id models.Identity) string {
	return uuid.NewSHA1(groupNamespace, []byte(fmt.Sprintf("%d\x00%s", id.Timestamp, id.Description))).String()
}

// KeyGetter is implemented by stores that can look a group up by Key directly.
type KeyGetter interface {
	GetByKey(ctx context.Context, key string) (models.Group, error)
}

// FingerprintGetter is implemented by stores that keep the fingerprint of
// each group next to its payload.
type FingerprintGetter interface {
	Fingerprint(ctx context.Context, id models.Identity) (string, error)
}

// GetByKey retrieves the group stored under key, using the store's own
// lookup when it has one.
func GetByKey(ctx context.Context, s Store, key string) (models.Group, error) {
	if _, err := uuid.Parse(key); err != nil {
		return models.Group{}, fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	if kg, ok := s.(KeyGetter); ok {
		return kg.GetByKey(ctx, key)
	}
	id, err := ResolveKey(ctx, s, key)
	if err != nil {
		return models.Group{}, err
	}
	return s.Get(ctx, id)
}

// ResolveKey finds the identity stored under key.
func ResolveKey(ctx context.Context, s Store, key string) (models.Identity, error) {
	if _, err := uuid.Parse(key); err != nil {
		return models.Identity{}, fmt.Errorf("%w %q", ErrInvalidKey, key)
	}
	ids, err := s.List(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	for _, id := range ids {
		if Key(id) == key {
			return id, nil
		}
	}
	return models.Identity{}, fmt.Errorf("%w: %s", ErrNotFound, key)
}
