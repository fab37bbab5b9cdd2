package db

import (
	"context"
	"database/sql"

	"github.com/tordrt/schemareflect/internal/schema"
)

// CatalogReader issues the metadata queries needed to reflect one namespace.
// Implementations must be safe for concurrent use when the Reflector runs
// with a concurrency above one.
type CatalogReader interface {
	// ListBaseTables returns the base tables (not views) of the namespace
	ListBaseTables(ctx context.Context, namespace string) ([]string, error)

	// PrimaryKeyColumns returns the primary key columns in key order
	PrimaryKeyColumns(ctx context.Context, namespace, table string) ([]string, error)

	// Columns returns one row per declared column, in ordinal order
	Columns(ctx context.Context, namespace, table string) ([]schema.ColumnRow, error)

	// ForeignKeys returns one row per referencing column
	ForeignKeys(ctx context.Context, namespace, table string) ([]schema.ForeignKeyRow, error)

	// Indexes returns the non primary key indexes of the table
	Indexes(ctx context.Context, namespace, table string) ([]schema.IndexRow, error)
}

// Stage names a step of the reflection run, used in error reports
type Stage string

const (
	StageListTables  Stage = "list base tables"
	StagePrimaryKey  Stage = "primary key"
	StageColumns     Stage = "columns"
	StageForeignKeys Stage = "foreign keys"
	StageIndexes     Stage = "indexes"
	StageAssemble    Stage = "assemble"
)

// readTable runs the per-table catalog queries in a fixed order
func readTable(ctx context.Context, r CatalogReader, namespace, table string) (schema.TableRows, error) {
	rows := schema.TableRows{Table: table}
	var err error

	if rows.PrimaryKey, err = r.PrimaryKeyColumns(ctx, namespace, table); err != nil {
		return rows, wrapStage(StagePrimaryKey, table, err)
	}
	if rows.Columns, err = r.Columns(ctx, namespace, table); err != nil {
		return rows, wrapStage(StageColumns, table, err)
	}
	if rows.ForeignKeys, err = r.ForeignKeys(ctx, namespace, table); err != nil {
		return rows, wrapStage(StageForeignKeys, table, err)
	}
	if rows.Indexes, err = r.Indexes(ctx, namespace, table); err != nil {
		return rows, wrapStage(StageIndexes, table, err)
	}
	return rows, nil
}

// SQLQuerier is the subset of *sql.DB, *sql.Conn and *sql.Tx used by the
// database/sql backed catalogs
type SQLQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryStrings runs a single-column query and collects the values in order
func queryStrings(ctx context.Context, q SQLQuerier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

// nullStringPtr converts a nullable catalog value into the model's optional form
func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
