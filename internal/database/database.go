// Package database owns connection construction, dialect handling, and
// the schema the ingestion pipeline relies on. Supported drivers are
// postgres (production) and sqlite3 (development).
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB wraps *sql.DB with the driver it was opened against so queries can
// be rebound for the active dialect. It is safe for concurrent use and
// is passed explicitly to every component that needs persistence.
type DB struct {
	*sql.DB
	driver string
}

// Open connects and verifies the database is reachable.
func Open(driver, dsn string, opts Options) (*DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return &DB{DB: conn, driver: driver}, nil
}

// Wrap adopts an existing connection, used by tests with sqlmock.
func Wrap(conn *sql.DB, driver string) *DB {
	return &DB{DB: conn, driver: driver}
}

// Driver returns the driver name the connection was opened with.
func (d *DB) Driver() string {
	return d.driver
}

// Rebind converts $n placeholders to the active dialect. Queries are
// written postgres-style throughout the repositories with placeholders
// in strictly ascending order, so positional '?' binding lines up.
func (d *DB) Rebind(query string) string {
	if d.driver == DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('?')
		i = j - 1
	}
	return b.String()
}
