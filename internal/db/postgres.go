// Package db owns the shared Postgres handle. Every repository borrows
// connections from this one pool; nothing else in the tree opens its own.
package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// pingTimeout bounds the startup reachability check so a wrong DATABASE_URL
// fails fast instead of hanging the binary.
const pingTimeout = 5 * time.Second

// Open connects to Postgres through the pgx stdlib driver and verifies the
// database answers before handing the pool out. Caller closes it on shutdown.
func Open(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(5)
	pool.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	return pool, nil
}
