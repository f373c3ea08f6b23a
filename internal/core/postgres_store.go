package core

import (
	"boqcore/internal/infra/persistence/postgres"
	"boqcore/pkg/domain"
)

// NewPostgresStore constructs a Postgres-backed store from the provided DSN.
func NewPostgresStore(dsn string, engine *domain.RulesEngine) (*postgres.Store, error) {
	return postgres.NewStore(dsn, engine)
}
