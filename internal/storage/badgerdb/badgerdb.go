// Package badgerdb provides a BadgerDB-backed implementation of the
// storage.Store interface.
//
// Each group is one key, "group/" followed by its storage key, holding the
// bencoded group. Identities are read back from the values, so List decodes
// every stored group.
package badgerdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/carlo-colombo/cashsplitter/internal/codec"
	"github.com/carlo-colombo/cashsplitter/internal/models"
	"github.com/carlo-colombo/cashsplitter/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

var keyPrefix = []byte("group/")

// Store implements storage.Store using BadgerDB.
type Store struct {
	db *dgbadger.DB
}

// New opens (or creates) a database in the directory dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return open(dgbadger.DefaultOptions(dir).WithSyncWrites(true))
}

// NewInMemory opens a database that lives only as long as the Store.
func NewInMemory() (*Store, error) {
	return open(dgbadger.DefaultOptions("").WithInMemory(true))
}

func open(opts dgbadger.Options) (*Store, error) {
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: slog.Default()})
	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func groupKey(key string) []byte {
	return append(bytes.Clone(keyPrefix), key...)
}

// Get retrieves the group with the given identity.
func (s *Store) Get(ctx context.Context, id models.Identity) (models.Group, error) {
	g, err := s.GetByKey(ctx, storage.Key(id))
	if err != nil {
		return models.Group{}, err
	}
	if g.Identity() != id {
		return models.Group{}, fmt.Errorf("%w: %s", storage.ErrNotFound, storage.Key(id))
	}
	return g, nil
}

// GetByKey retrieves the group stored under key.
func (s *Store) GetByKey(ctx context.Context, key string) (models.Group, error) {
	var g models.Group
	err := s.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get(groupKey(key))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			g, err = codec.DecodeBytes(val)
			return err
		})
	})
	if err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Put stores g, replacing any previous copy with the same identity.
func (s *Store) Put(ctx context.Context, g models.Group) error {
	payload, err := codec.EncodeBytes(g)
	if err != nil {
		return fmt.Errorf("failed to encode group: %w", err)
	}
	key := storage.Key(g.Identity())
	if err := s.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Set(groupKey(key), payload)
	}); err != nil {
		return fmt.Errorf("failed to store group: %w", err)
	}
	slog.Debug("Group stored", "key", key, "revision", g.Revision, "bytes", len(payload))
	return nil
}

// List returns the identities of every stored group, oldest first.
func (s *Store) List(ctx context.Context) ([]models.Identity, error) {
	ids := []models.Identity{}
	err := s.db.View(func(txn *dgbadger.Txn) error {
		opts := dgbadger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := it.Item().Value(func(val []byte) error {
				g, err := codec.DecodeBytes(val)
				if err != nil {
					return err
				}
				ids = append(ids, g.Identity())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Timestamp != ids[j].Timestamp {
			return ids[i].Timestamp < ids[j].Timestamp
		}
		return ids[i].Description < ids[j].Description
	})
	return ids, nil
}

// Delete removes the group with the given identity.
func (s *Store) Delete(ctx context.Context, id models.Identity) error {
	key := storage.Key(id)
	return s.db.Update(func(txn *dgbadger.Txn) error {
		if _, err := txn.Get(groupKey(key)); errors.Is(err, dgbadger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		} else if err != nil {
			return err
		}
		return txn.Delete(groupKey(key))
	})
}

// badgerLogger adapts slog to BadgerDB's Logger interface. Badger's info
// chatter goes to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
