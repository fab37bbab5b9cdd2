package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQLClient manages the connection to MySQL
type MySQLClient struct {
	db       *sql.DB
	database string
}

// NewMySQLClient opens a MySQL connection from a go-sql-driver DSN
// (user:pass@tcp(host:3306)/dbname)
func NewMySQLClient(ctx context.Context, dsn string, maxConns int) (*MySQLClient, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := sql.OpenDB(connector)
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &MySQLClient{db: db, database: cfg.DBName}, nil
}

// Close closes the database connection
func (c *MySQLClient) Close() error {
	return c.db.Close()
}

// GetDB returns the underlying database connection
func (c *MySQLClient) GetDB() *sql.DB {
	return c.db
}

// DatabaseName is the database selected by the DSN, used as the default namespace
func (c *MySQLClient) DatabaseName() string {
	return c.database
}
