package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/garita/internal/db"
	"github.com/BrandonDHaskell/garita/internal/garita/model"
	sqlitestore "github.com/BrandonDHaskell/garita/internal/garita/store/sqlite"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. The connection is closed when the test ends.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each test gets its own shared-cache database so the pool can reopen
	// the connection without losing the schema.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}
	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed when the test ends.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// testPoints is the catalog every store test runs against.
var testPoints = []model.ControlPoint{
	{ID: 1, Name: "Main Gate", Kind: model.KindGate},
	{ID: 2, Name: "Dining Hall", Kind: model.KindInternalZone, TrackPresence: true, Priority: 1},
	{ID: 3, Name: "Chemical Storage", Kind: model.KindInternalZone, TrackPresence: true, Priority: 2},
}

// newTestStore opens a migrated database, syncs testPoints into it and
// returns a Store along with the raw connection for assertions.
func newTestStore(t *testing.T) (*sqlitestore.Store, *sql.DB) {
	t.Helper()

	conn := openTestDB(t)
	if err := db.SyncControlPoints(context.Background(), conn, db.QuestionMarks, testPoints); err != nil {
		t.Fatalf("SyncControlPoints: %v", err)
	}
	return sqlitestore.New(conn, newTestWriter(t, conn)), conn
}
