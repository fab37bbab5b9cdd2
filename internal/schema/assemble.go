package schema

import (
	"fmt"
	"strings"
)

// WarningKind classifies an inconsistency found while assembling a table
type WarningKind string

const (
	WarnOrphanForeignKey        WarningKind = "orphan_foreign_key"
	WarnMissingPrimaryKeyColumn WarningKind = "missing_primary_key_column"
	WarnMissingIndexColumn      WarningKind = "missing_index_column"
)

// Warning describes a catalog inconsistency that did not stop assembly
type Warning struct {
	Kind    WarningKind
	Table   string
	Column  string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: table %q column %q: %s", w.Kind, w.Table, w.Column, w.Message)
}

// Policy controls how inconsistencies are handled
type Policy struct {
	// Strict turns every warning into an AssemblyError
	Strict bool
}

// AssemblyError is returned in strict mode when a table is inconsistent
type AssemblyError struct {
	Table    string
	Warnings []Warning
}

func (e *AssemblyError) Error() string {
	msgs := make([]string, len(e.Warnings))
	for i, w := range e.Warnings {
		msgs[i] = w.String()
	}
	return fmt.Sprintf("table %q is inconsistent: %s", e.Table, strings.Join(msgs, "; "))
}

// Assemble folds the raw catalog rows of one table into a Table.
//
// Foreign key rows are attached to the column with the same name; when
// several rows target the same column the last one wins. Rows whose local
// column does not exist are reported as warnings and otherwise ignored.
func Assemble(in TableRows, policy Policy) (Table, []Warning, error) {
	table := Table{
		PrimaryKey: make([]string, 0, len(in.PrimaryKey)),
		Columns:    make([]Column, 0, len(in.Columns)),
		Indexes:    make([]Index, 0, len(in.Indexes)),
	}
	var warnings []Warning

	for _, row := range in.Columns {
		table.Columns = append(table.Columns, Column{
			Name:     row.Name,
			Type:     row.DataType,
			Nullable: row.IsNullable,
			Default:  row.Default,
		})
	}

	for _, fk := range in.ForeignKeys {
		col := table.Column(fk.Column)
		if col == nil {
			warnings = append(warnings, Warning{
				Kind:    WarnOrphanForeignKey,
				Table:   in.Table,
				Column:  fk.Column,
				Message: fmt.Sprintf("foreign key %q references %s.%s from an unknown column", fk.Constraint, fk.ForeignTable, fk.ForeignColumn),
			})
			continue
		}
		col.References = &ForeignKey{
			Table:    fk.ForeignTable,
			Column:   fk.ForeignColumn,
			OnDelete: fk.OnDelete,
			OnUpdate: fk.OnUpdate,
		}
	}

	for _, name := range in.PrimaryKey {
		table.PrimaryKey = append(table.PrimaryKey, name)
		if table.Column(name) == nil {
			warnings = append(warnings, Warning{
				Kind:    WarnMissingPrimaryKeyColumn,
				Table:   in.Table,
				Column:  name,
				Message: "primary key column is not a table column",
			})
		}
	}

	for _, row := range in.Indexes {
		idx := Index{
			Name:    row.Name,
			Columns: ParseIndexColumns(row.Columns),
			Unique:  row.IsUnique,
		}
		for _, name := range idx.Columns {
			if table.Column(name) == nil {
				warnings = append(warnings, Warning{
					Kind:    WarnMissingIndexColumn,
					Table:   in.Table,
					Column:  name,
					Message: fmt.Sprintf("index %q covers a column that is not a table column", row.Name),
				})
			}
		}
		table.Indexes = append(table.Indexes, idx)
	}

	if policy.Strict && len(warnings) > 0 {
		return Table{}, warnings, &AssemblyError{Table: in.Table, Warnings: warnings}
	}
	return table, warnings, nil
}

// ParseIndexColumns splits a comma-joined column list, trimming whitespace
// around each element. Order and duplicates are preserved.
func ParseIndexColumns(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return []string{}
	}
	parts := strings.Split(joined, ",")
	columns := make([]string, len(parts))
	for i, p := range parts {
		columns[i] = strings.TrimSpace(p)
	}
	return columns
}
