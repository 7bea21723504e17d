package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Config struct {
	Path string // e.g. "./data/garita.db"
	Env  string // "dev" | "prod"

	// BusyTimeout bounds how long a connection waits on a locked database.
	// Defaults to 5s.
	BusyTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "./data/garita.db"
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
	return c
}

// DSN builds the modernc.org/sqlite DSN with per-connection PRAGMAs. The
// ledger is the audit record of who is inside the plant, so prod fsyncs on
// every commit (synchronous FULL); dev trades that for speed.
func DSN(cfg Config) string {
	cfg = cfg.withDefaults()
	sync := "NORMAL"
	if cfg.Env == "prod" {
		sync = "FULL"
	}
	return fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(%s)&_pragma=busy_timeout(%d)",
		cfg.Path, sync, cfg.BusyTimeout.Milliseconds(),
	)
}

// Open opens the ledger database, creating its directory in dev, and applies
// pending migrations. In prod the directory must already exist so a typo in
// GARITA_DB_PATH fails loudly instead of starting an empty ledger.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	cfg = cfg.withDefaults()

	dir := filepath.Dir(cfg.Path)
	if cfg.Env == "prod" {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("db dir: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// Single connection: every write goes through the Worker anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
