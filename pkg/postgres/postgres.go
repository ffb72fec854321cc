// Package postgres opens pooled PostgreSQL connections through the pgx
// stdlib driver and applies schema migrations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const driverName = "pgx"

// Pool holds connection pool limits. Zero values keep the defaults.
type Pool struct {
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	MaxIdleConns    int
	MaxOpenConns    int
}

var defaultPool = Pool{
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
}

func (p Pool) withDefaults() Pool {
	if p.ConnMaxIdleTime <= 0 {
		p.ConnMaxIdleTime = defaultPool.ConnMaxIdleTime
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = defaultPool.ConnMaxLifetime
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = defaultPool.MaxIdleConns
	}
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = defaultPool.MaxOpenConns
	}
	return p
}

func (p Pool) apply(db *sqlx.DB) {
	db.SetConnMaxIdleTime(p.ConnMaxIdleTime)
	db.SetConnMaxLifetime(p.ConnMaxLifetime)
	db.SetMaxIdleConns(p.MaxIdleConns)
	db.SetMaxOpenConns(p.MaxOpenConns)
}

// Open connects to dsn, verifies the connection and configures the pool.
func Open(ctx context.Context, dsn string, pool Pool) (*sqlx.DB, error) {
	const op = "postgres.Open"

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	pool.withDefaults().apply(db)

	return db, nil
}
