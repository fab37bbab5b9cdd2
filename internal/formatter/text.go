package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/schemareflect/internal/schema"
)

// TextFormatter writes a compact human-readable summary of a schema
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes one block per table in name order
func (f *TextFormatter) Format(s *schema.Schema) error {
	for i, name := range s.TableNames() {
		if i > 0 {
			if _, err := fmt.Fprintln(f.writer); err != nil {
				return err
			}
		}

		if err := f.formatTable(name, s.Tables[name]); err != nil {
			return err
		}
	}
	return nil
}

func (f *TextFormatter) formatTable(name string, table schema.Table) error {
	var b strings.Builder

	pkStr := ""
	if len(table.PrimaryKey) > 0 {
		pkStr = fmt.Sprintf(" (PK: %s)", strings.Join(table.PrimaryKey, ", "))
	}
	fmt.Fprintf(&b, "TABLE %s%s\n", name, pkStr)

	for _, col := range table.Columns {
		fmt.Fprintf(&b, "  %s\n", formatColumn(col))
	}

	var refs []string
	for _, col := range table.Columns {
		if col.References != nil {
			refs = append(refs, fmt.Sprintf("%s → %s.%s%s", col.Name, col.References.Table, col.References.Column, formatActions(col.References)))
		}
	}
	if len(refs) > 0 {
		b.WriteString("\n  REFERENCES:\n")
		for _, r := range refs {
			fmt.Fprintf(&b, "    %s\n", r)
		}
	}

	if len(table.Indexes) > 0 {
		b.WriteString("\n  INDEXES:\n")
		for _, idx := range table.Indexes {
			unique := ""
			if idx.Unique {
				unique = " UNIQUE"
			}
			fmt.Fprintf(&b, "    %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), unique)
		}
	}

	_, err := io.WriteString(f.writer, b.String())
	return err
}

func formatColumn(col schema.Column) string {
	parts := []string{col.Name + ":", col.Type}

	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}

	if col.Default != nil {
		parts = append(parts, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	if col.Check != nil {
		parts = append(parts, fmt.Sprintf("CHECK(%s)", *col.Check))
	}

	return strings.Join(parts, " ")
}

// formatActions renders the referential actions that are set, e.g.
// " ON DELETE CASCADE"
func formatActions(fk *schema.ForeignKey) string {
	var s string
	if fk.OnDelete != nil {
		s += " ON DELETE " + *fk.OnDelete
	}
	if fk.OnUpdate != nil {
		s += " ON UPDATE " + *fk.OnUpdate
	}
	return s
}
