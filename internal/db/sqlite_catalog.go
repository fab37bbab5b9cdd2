package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/tordrt/schemareflect/internal/schema"
)

// DefaultSQLiteNamespace is the schema name of the primary database file
const DefaultSQLiteNamespace = "main"

// SQLiteCatalog reads schema metadata through sqlite_master and the
// table PRAGMAs. PRAGMA arguments cannot be bound, so every identifier
// passes through QuoteIdent first.
type SQLiteCatalog struct {
	db SQLQuerier
}

// NewSQLiteCatalog creates a catalog reader over an open database handle
func NewSQLiteCatalog(db SQLQuerier) *SQLiteCatalog {
	return &SQLiteCatalog{db: db}
}

// ListBaseTables returns user tables of the attached schema, ordered by name.
// Only the literal sqlite_ prefix is reserved for internal tables.
func (c *SQLiteCatalog) ListBaseTables(ctx context.Context, namespace string) ([]string, error) {
	ns, err := QuoteIdent(namespace)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT name
		FROM %s.sqlite_master
		WHERE type = 'table' AND substr(name, 1, 7) <> 'sqlite_'
		ORDER BY name
	`, ns)

	return queryStrings(ctx, c.db, query)
}

// tableInfoRow is one row of PRAGMA table_info
type tableInfoRow struct {
	cid          int
	name         string
	colType      string
	notNull      int
	defaultValue sql.NullString
	pk           int
}

func (c *SQLiteCatalog) tableInfo(ctx context.Context, namespace, table string) ([]tableInfoRow, error) {
	query, err := pragma(namespace, "table_info", table)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []tableInfoRow
	for rows.Next() {
		var r tableInfoRow
		if err := rows.Scan(&r.cid, &r.name, &r.colType, &r.notNull, &r.defaultValue, &r.pk); err != nil {
			return nil, err
		}
		infos = append(infos, r)
	}

	return infos, rows.Err()
}

// PrimaryKeyColumns returns primary key columns in key order. table_info
// reports each column's 1-based position within the key.
func (c *SQLiteCatalog) PrimaryKeyColumns(ctx context.Context, namespace, table string) ([]string, error) {
	infos, err := c.tableInfo(ctx, namespace, table)
	if err != nil {
		return nil, err
	}

	var keyed []tableInfoRow
	for _, r := range infos {
		if r.pk > 0 {
			keyed = append(keyed, r)
		}
	}
	sort.SliceStable(keyed, func(i, j int) bool { return keyed[i].pk < keyed[j].pk })

	pk := make([]string, len(keyed))
	for i, r := range keyed {
		pk[i] = r.name
	}
	return pk, nil
}

// Columns returns column information in declaration order. Declared types
// are reported as written, including an empty type for untyped columns.
func (c *SQLiteCatalog) Columns(ctx context.Context, namespace, table string) ([]schema.ColumnRow, error) {
	infos, err := c.tableInfo(ctx, namespace, table)
	if err != nil {
		return nil, err
	}

	columns := make([]schema.ColumnRow, len(infos))
	for i, r := range infos {
		columns[i] = schema.ColumnRow{
			Name:       r.name,
			DataType:   r.colType,
			IsNullable: r.notNull == 0,
			Default:    nullStringPtr(r.defaultValue),
		}
	}
	return columns, nil
}

// ForeignKeys returns one row per referencing column. A reference that
// omits the parent column targets the parent's primary key; SQLite reports
// it as NULL and the row is resolved against the parent table.
func (c *SQLiteCatalog) ForeignKeys(ctx context.Context, namespace, table string) ([]schema.ForeignKeyRow, error) {
	query, err := pragma(namespace, "foreign_key_list", table)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type fkEntry struct {
		id, seq int
		row     schema.ForeignKeyRow
		to      sql.NullString
	}

	var entries []fkEntry
	for rows.Next() {
		var e fkEntry
		var onUpdate, onDelete, match string

		if err := rows.Scan(&e.id, &e.seq, &e.row.ForeignTable, &e.row.Column, &e.to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}

		e.row.OnDelete = &onDelete
		e.row.OnUpdate = &onUpdate
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].id != entries[j].id {
			return entries[i].id < entries[j].id
		}
		return entries[i].seq < entries[j].seq
	})

	fks := make([]schema.ForeignKeyRow, 0, len(entries))
	parentKeys := map[string][]string{}
	for _, e := range entries {
		e.row.Constraint = fmt.Sprintf("fk_%s_%d", table, e.id)
		if e.to.Valid {
			e.row.ForeignColumn = e.to.String
		} else {
			key, ok := parentKeys[e.row.ForeignTable]
			if !ok {
				if key, err = c.PrimaryKeyColumns(ctx, namespace, e.row.ForeignTable); err != nil {
					return nil, err
				}
				parentKeys[e.row.ForeignTable] = key
			}
			if e.seq < len(key) {
				e.row.ForeignColumn = key[e.seq]
			}
		}
		fks = append(fks, e.row)
	}

	return fks, nil
}

// Indexes returns every index except the one backing the primary key,
// ordered by name. Expression columns have no name and are skipped.
func (c *SQLiteCatalog) Indexes(ctx context.Context, namespace, table string) ([]schema.IndexRow, error) {
	query, err := pragma(namespace, "index_list", table)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []schema.IndexRow
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string

		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, err
		}

		if origin == "pk" {
			continue
		}
		indexes = append(indexes, schema.IndexRow{Name: name, IsUnique: unique == 1})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// release the connection before issuing index_info
	rows.Close()

	for i := range indexes {
		columns, err := c.indexColumns(ctx, namespace, indexes[i].Name)
		if err != nil {
			return nil, err
		}
		indexes[i].Columns = strings.Join(columns, ",")
	}

	sort.Slice(indexes, func(i, j int) bool { return indexes[i].Name < indexes[j].Name })
	return indexes, nil
}

func (c *SQLiteCatalog) indexColumns(ctx context.Context, namespace, index string) ([]string, error) {
	query, err := pragma(namespace, "index_info", index)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var colName sql.NullString

		if err := rows.Scan(&seqno, &cid, &colName); err != nil {
			return nil, err
		}
		if colName.Valid {
			columns = append(columns, colName.String)
		}
	}

	return columns, rows.Err()
}

// pragma renders PRAGMA "namespace".name("arg") with both identifiers quoted
func pragma(namespace, name, arg string) (string, error) {
	ns, err := QuoteIdent(namespace)
	if err != nil {
		return "", err
	}
	quoted, err := QuoteIdent(arg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PRAGMA %s.%s(%s)", ns, name, quoted), nil
}
