// Package moka is the access layer for the downstream laboratory record
// system. It exposes a narrow repository covering exactly the reads and the
// single conditional update the booking gate needs; the schema itself is
// owned by the external system and never created or migrated from here.
package moka

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	// Database drivers. SQLite backs local development and tests; Postgres
	// backs the mirrored reporting database on the server deployments.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ConnectionConfig holds database connection settings.
type ConnectionConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open opens and verifies a database connection pool.
func Open(ctx context.Context, config ConnectionConfig, logger *logrus.Logger) (*sql.DB, error) {
	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", config.Driver, err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", config.Driver, err)
	}

	logger.WithFields(logrus.Fields{
		"driver":         config.Driver,
		"max_open_conns": config.MaxOpenConns,
	}).Info("Record system connection established")

	return db, nil
}

// rebind rewrites "?" placeholders into the driver's native style. SQLite
// accepts "?" as written; Postgres needs ordinal "$n" markers.
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
