// Package backend opens the storage.Store selected by configuration.
package backend

import (
	"fmt"

	"github.com/carlo-colombo/cashsplitter/internal/storage"
	"github.com/carlo-colombo/cashsplitter/internal/storage/badgerdb"
	"github.com/carlo-colombo/cashsplitter/internal/storage/memory"
	"github.com/carlo-colombo/cashsplitter/internal/storage/sqlite"
)

// Supported backends.
const (
	SQLite = "sqlite"
	Badger = "badger"
	Memory = "memory"
)

// Open returns the store of the given kind. path is a database file for
// SQLite, a directory for Badger, and ignored for Memory.
func Open(kind, path string) (storage.Store, error) {
	switch kind {
	case SQLite, "":
		return sqlite.New(path)
	case Badger:
		return badgerdb.New(path)
	case Memory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
