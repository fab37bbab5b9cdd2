package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig tunes the connection pool used by PostgresClient
type PoolConfig struct {
	MaxConns       int32
	ConnectTimeout time.Duration
}

// DefaultPoolConfig returns pool settings sized for parallel catalog reads
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConns:       8,
		ConnectTimeout: 10 * time.Second,
	}
}

// PostgresClient manages the connection pool to PostgreSQL
type PostgresClient struct {
	pool *pgxpool.Pool
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(ctx context.Context, connString string, cfg PoolConfig) (*PostgresClient, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{pool: pool}, nil
}

// Close closes every connection in the pool
func (c *PostgresClient) Close() {
	c.pool.Close()
}

// GetPool returns the underlying pool
func (c *PostgresClient) GetPool() *pgxpool.Pool {
	return c.pool
}
