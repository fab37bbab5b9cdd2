package formatter

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tordrt/schemareflect/internal/schema"
)

// MarkdownFormatter formats schema as markdown
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the schema in markdown format, tables in name order
func (f *MarkdownFormatter) Format(s *schema.Schema) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Database Schema\n\nFormat version: %d\n\n", s.Version)

	for _, name := range s.TableNames() {
		f.formatTable(&b, name, s.Tables[name])
	}

	_, err := io.WriteString(f.writer, b.String())
	return err
}

func (f *MarkdownFormatter) formatTable(b *strings.Builder, name string, table schema.Table) {
	fmt.Fprintf(b, "## %s\n\n", name)

	b.WriteString("### Columns\n\n")
	for _, col := range table.Columns {
		constraintStr := f.formatConstraints(col, table.PrimaryKey)
		if constraintStr != "" {
			fmt.Fprintf(b, "- **%s:** %s, %s\n", col.Name, col.Type, constraintStr)
		} else {
			fmt.Fprintf(b, "- **%s:** %s\n", col.Name, col.Type)
		}
	}
	b.WriteString("\n")

	var hasRefs bool
	for _, col := range table.Columns {
		if col.References == nil {
			continue
		}
		if !hasRefs {
			b.WriteString("### References\n\n")
			hasRefs = true
		}
		fmt.Fprintf(b, "- %s → %s.%s%s\n", col.Name, col.References.Table, col.References.Column, formatActions(col.References))
	}
	if hasRefs {
		b.WriteString("\n")
	}

	if len(table.Indexes) > 0 {
		b.WriteString("### Indexes\n\n")
		for _, idx := range table.Indexes {
			if idx.Unique {
				fmt.Fprintf(b, "- %s on (%s), unique\n", idx.Name, strings.Join(idx.Columns, ", "))
			} else {
				fmt.Fprintf(b, "- %s on (%s)\n", idx.Name, strings.Join(idx.Columns, ", "))
			}
		}
		b.WriteString("\n")
	}
}

func (f *MarkdownFormatter) formatConstraints(col schema.Column, primaryKey []string) string {
	var constraints []string

	if slices.Contains(primaryKey, col.Name) {
		constraints = append(constraints, "PK")
	}

	if !col.Nullable {
		constraints = append(constraints, "NOT NULL")
	}

	if col.Default != nil {
		constraints = append(constraints, fmt.Sprintf("DEFAULT %s", *col.Default))
	}

	if col.Check != nil {
		constraints = append(constraints, fmt.Sprintf("CHECK(%s)", *col.Check))
	}

	return strings.Join(constraints, ", ")
}
