package memory

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	// InMemory opens a private database that lives as long as the store.
	InMemory = ":memory:"
)

// openDatabase opens path with WAL journaling and a busy timeout so that
// concurrent quarantine sessions can write without SQLITE_BUSY errors.
func openDatabase(path string) (*sql.DB, error) {
	if path == InMemory {
		db, err := sql.Open(driverName, InMemory)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		return db, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")

	db, err := sql.Open(driverName, "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}
