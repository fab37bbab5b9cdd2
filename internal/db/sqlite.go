package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteClient manages the connection to SQLite
type SQLiteClient struct {
	db *sql.DB
}

// NewSQLiteClient opens a SQLite database file or file: URI
func NewSQLiteClient(ctx context.Context, path string) (*SQLiteClient, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection
	if isMemoryDSN(path) {
		db.SetMaxOpenConns(1)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

// Close closes the database connection
func (c *SQLiteClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *SQLiteClient) GetDB() *sql.DB {
	return c.db
}

func isMemoryDSN(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
