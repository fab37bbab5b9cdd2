package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/tordrt/schemareflect/internal/schema"
)

// DefaultPostgresNamespace is the namespace reflected when none is given
const DefaultPostgresNamespace = "public"

// PgQuerier is satisfied by *pgx.Conn, *pgxpool.Pool and pgx.Tx.
// Only a pool is safe for concurrent reflection.
type PgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresCatalog reads schema metadata from the PostgreSQL catalog.
// Namespace and table names are always bound as parameters.
type PostgresCatalog struct {
	conn PgQuerier
}

// NewPostgresCatalog creates a catalog reader over an open connection.
// The caller keeps ownership of conn.
func NewPostgresCatalog(conn PgQuerier) *PostgresCatalog {
	return &PostgresCatalog{conn: conn}
}

// ListBaseTables returns the base tables of the namespace, ordered by name
func (c *PostgresCatalog) ListBaseTables(ctx context.Context, namespace string) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := c.conn.Query(ctx, query, namespace)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// PrimaryKeyColumns returns the columns of the primary key index in key order
func (c *PostgresCatalog) PrimaryKeyColumns(ctx context.Context, namespace, table string) ([]string, error) {
	query := `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_class t ON t.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN LATERAL unnest(i.indkey) WITH ORDINALITY AS k(attnum, ord) ON TRUE
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
		WHERE i.indisprimary
			AND n.nspname = $1
			AND t.relname = $2
		ORDER BY k.ord
	`

	rows, err := c.conn.Query(ctx, query, namespace, table)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Columns returns column information for a table in ordinal order
func (c *PostgresCatalog) Columns(ctx context.Context, namespace, table string) ([]schema.ColumnRow, error) {
	query := `
		SELECT
			column_name,
			data_type,
			is_nullable = 'YES' AS is_nullable,
			column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := c.conn.Query(ctx, query, namespace, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.ColumnRow
	for rows.Next() {
		var col schema.ColumnRow
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.Default); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// ForeignKeys returns one row per referencing column. Columns of composite
// constraints are paired with their referenced column by key position.
func (c *PostgresCatalog) ForeignKeys(ctx context.Context, namespace, table string) ([]schema.ForeignKeyRow, error) {
	query := `
		SELECT
			con.conname,
			la.attname AS column_name,
			rt.relname AS foreign_table,
			ra.attname AS foreign_column,
			` + fkActionCase("con.confdeltype") + ` AS on_delete,
			` + fkActionCase("con.confupdtype") + ` AS on_update
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class rt ON rt.oid = con.confrelid
		JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(local_attnum, foreign_attnum, ord) ON TRUE
		JOIN pg_attribute la ON la.attrelid = con.conrelid AND la.attnum = k.local_attnum
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.foreign_attnum
		WHERE con.contype = 'f'
			AND n.nspname = $1
			AND t.relname = $2
		ORDER BY con.conname, k.ord
	`

	rows, err := c.conn.Query(ctx, query, namespace, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKeyRow
	for rows.Next() {
		var fk schema.ForeignKeyRow
		if err := rows.Scan(&fk.Constraint, &fk.Column, &fk.ForeignTable, &fk.ForeignColumn, &fk.OnDelete, &fk.OnUpdate); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}

	return fks, rows.Err()
}

// Indexes returns the non primary key indexes, with columns in index order.
// Expression key parts have no attribute (attnum 0) and are left out, so an
// index built only on expressions is not reported.
func (c *PostgresCatalog) Indexes(ctx context.Context, namespace, table string) ([]schema.IndexRow, error) {
	query := `
		SELECT
			i.relname AS index_name,
			array_to_string(array_agg(a.attname ORDER BY k.ord), ',') AS columns,
			ix.indisunique AS is_unique
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON TRUE
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
			AND t.relname = $2
			AND NOT ix.indisprimary
		GROUP BY i.relname, ix.indisunique
		ORDER BY i.relname
	`

	rows, err := c.conn.Query(ctx, query, namespace, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.IndexRow
	for rows.Next() {
		var idx schema.IndexRow
		if err := rows.Scan(&idx.Name, &idx.Columns, &idx.IsUnique); err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}

// fkActionCase renders the pg_constraint action code as the rule name
// information_schema.referential_constraints reports
func fkActionCase(column string) string {
	return `CASE ` + column + `
				WHEN 'a' THEN 'NO ACTION'
				WHEN 'r' THEN 'RESTRICT'
				WHEN 'c' THEN 'CASCADE'
				WHEN 'n' THEN 'SET NULL'
				WHEN 'd' THEN 'SET DEFAULT'
			END`
}
