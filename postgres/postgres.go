// Package postgres persists workflows in PostgreSQL via pgx.
package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/meikuraledutech/mlgraph"
)

// PGStore implements mlgraph.Store using PostgreSQL via pgx.
type PGStore struct {
	db  *pgxpool.Pool
	log *zap.Logger
}

var _ mlgraph.Store = (*PGStore)(nil)

// New creates a new PGStore backed by the given pgx connection pool.
// log may be nil.
func New(db *pgxpool.Pool, log *zap.Logger) *PGStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &PGStore{db: db, log: log}
}
