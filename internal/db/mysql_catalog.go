package db

import (
	"context"
	"database/sql"

	"github.com/tordrt/schemareflect/internal/schema"
)

// MySQLCatalog reads schema metadata from MySQL's information_schema.
// In MySQL the namespace is the database name.
type MySQLCatalog struct {
	db SQLQuerier
}

// NewMySQLCatalog creates a catalog reader over an open database handle
func NewMySQLCatalog(db SQLQuerier) *MySQLCatalog {
	return &MySQLCatalog{db: db}
}

// ListBaseTables returns the base tables of the database, ordered by name
func (c *MySQLCatalog) ListBaseTables(ctx context.Context, namespace string) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`
	return queryStrings(ctx, c.db, query, namespace)
}

// PrimaryKeyColumns returns primary key columns in key order
func (c *MySQLCatalog) PrimaryKeyColumns(ctx context.Context, namespace, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`
	return queryStrings(ctx, c.db, query, namespace, table)
}

// Columns returns column information for a table. The full column_type is
// reported so that lengths and enum members survive.
func (c *MySQLCatalog) Columns(ctx context.Context, namespace, table string) ([]schema.ColumnRow, error) {
	query := `
		SELECT
			column_name,
			column_type,
			is_nullable,
			column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`

	rows, err := c.db.QueryContext(ctx, query, namespace, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []schema.ColumnRow
	for rows.Next() {
		var col schema.ColumnRow
		var nullable string
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.DataType, &nullable, &defaultVal); err != nil {
			return nil, err
		}

		col.IsNullable = nullable == "YES"
		col.Default = nullStringPtr(defaultVal)
		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// ForeignKeys returns one row per referencing column with its referential actions
func (c *MySQLCatalog) ForeignKeys(ctx context.Context, namespace, table string) ([]schema.ForeignKeyRow, error) {
	query := `
		SELECT
			kcu.constraint_name,
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name,
			rc.delete_rule,
			rc.update_rule
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON rc.constraint_schema = kcu.constraint_schema
			AND rc.constraint_name = kcu.constraint_name
			AND rc.table_name = kcu.table_name
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`

	rows, err := c.db.QueryContext(ctx, query, namespace, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []schema.ForeignKeyRow
	for rows.Next() {
		var fk schema.ForeignKeyRow
		var onDelete, onUpdate sql.NullString

		if err := rows.Scan(&fk.Constraint, &fk.Column, &fk.ForeignTable, &fk.ForeignColumn, &onDelete, &onUpdate); err != nil {
			return nil, err
		}

		fk.OnDelete = nullStringPtr(onDelete)
		fk.OnUpdate = nullStringPtr(onUpdate)
		fks = append(fks, fk)
	}

	return fks, rows.Err()
}

// Indexes returns the non primary key indexes with columns in index order
func (c *MySQLCatalog) Indexes(ctx context.Context, namespace, table string) ([]schema.IndexRow, error) {
	query := `
		SELECT
			s.index_name,
			s.non_unique = 0 AS is_unique,
			GROUP_CONCAT(s.column_name ORDER BY s.seq_in_index SEPARATOR ',') AS column_names
		FROM information_schema.statistics s
		WHERE s.table_schema = ?
			AND s.table_name = ?
			AND s.index_name != 'PRIMARY'
		GROUP BY s.index_name, s.non_unique
		ORDER BY s.index_name
	`

	rows, err := c.db.QueryContext(ctx, query, namespace, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.IndexRow
	for rows.Next() {
		var idx schema.IndexRow
		var isUnique int
		// functional indexes have no column names
		var columnNames sql.NullString

		if err := rows.Scan(&idx.Name, &isUnique, &columnNames); err != nil {
			return nil, err
		}

		idx.IsUnique = isUnique == 1
		idx.Columns = columnNames.String
		indexes = append(indexes, idx)
	}

	return indexes, rows.Err()
}
