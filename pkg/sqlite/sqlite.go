package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver registered by go-sqlite3.
const DriverName = "sqlite3"

// Open opens a file-backed SQLite database in WAL mode with foreign keys
// enforced. Transactions take the write lock up front and timestamps are read
// back in UTC.
func Open(dbPath string) (*sql.DB, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	params := []string{
		"_loc=UTC",
		"_journal_mode=WAL",
		"_busy_timeout=3000",
		"_synchronous=NORMAL",
		"_foreign_keys=1",
		"_txlock=immediate",
	}
	dsn := "file:" + dbPath + "?" + strings.Join(params, "&")
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}
