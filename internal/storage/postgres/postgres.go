package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage instance for processing sql queries
type Storage struct {
	dbPool *pgxpool.Pool
}

// New initialize an instance of storage db context
func New(ctx context.Context, connString string) (*Storage, error) {
	dbPool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, errors.New("error connecting to database: " + err.Error())
	}
	if err := dbPool.Ping(ctx); err != nil {
		return nil, errors.New("error pinging database: " + err.Error())
	}

	return &Storage{dbPool: dbPool}, nil
}

// CloseStorage ends database pool connection
func (s *Storage) CloseStorage() {
	s.dbPool.Close()
}
