package core

import (
	"fmt"
	"os"

	"boqcore/internal/infra/persistence/memory"
	"boqcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// NewMemoryStore constructs the in-memory backend directly.
func NewMemoryStore(engine *RulesEngine) *memory.Store {
	return memory.NewStore(engine)
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	BOQCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	BOQCORE_SQLITE_PATH: path to sqlite file (default ./boqcore.db)
//	BOQCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("BOQCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		path := os.Getenv("BOQCORE_SQLITE_PATH")
		return NewSQLiteStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("BOQCORE_POSTGRES_DSN")
		return NewPostgresStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
