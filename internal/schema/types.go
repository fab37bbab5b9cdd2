package schema

import "sort"

// FormatVersion identifies the layout of the serialized schema document
const FormatVersion = 1

// Schema represents a complete reflected database schema
type Schema struct {
	Version int              `toml:"version" yaml:"version"`
	Tables  map[string]Table `toml:"tables" yaml:"tables"`
}

// Table represents a database table
type Table struct {
	PrimaryKey []string `toml:"pk" yaml:"pk"`
	Columns    []Column `toml:"columns" yaml:"columns"`
	Indexes    []Index  `toml:"indexes" yaml:"indexes"`
}

// Column represents a table column. Type and Default are kept verbatim
// as reported by the source database.
type Column struct {
	Name       string      `toml:"name" yaml:"name"`
	Type       string      `toml:"type" yaml:"type"`
	Nullable   bool        `toml:"nullable" yaml:"nullable"`
	Default    *string     `toml:"default,omitempty" yaml:"default,omitempty"`
	References *ForeignKey `toml:"references,omitempty" yaml:"references,omitempty"`
	Check      *string     `toml:"check,omitempty" yaml:"check,omitempty"`
}

// ForeignKey represents a single referenced column.
// Composite constraints are recorded as one ForeignKey per local column.
type ForeignKey struct {
	Table    string  `toml:"table" yaml:"table"`
	Column   string  `toml:"column" yaml:"column"`
	OnDelete *string `toml:"on_delete,omitempty" yaml:"on_delete,omitempty"`
	OnUpdate *string `toml:"on_update,omitempty" yaml:"on_update,omitempty"`
}

// Index represents a non primary key index
type Index struct {
	Name    string   `toml:"name" yaml:"name"`
	Columns []string `toml:"columns" yaml:"columns"`
	Unique  bool     `toml:"unique" yaml:"unique"`
}

// New returns an empty schema with the current format version
func New() *Schema {
	return &Schema{
		Version: FormatVersion,
		Tables:  make(map[string]Table),
	}
}

// TableNames returns the table names in lexical order
func (s *Schema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Column returns the column with the given name, or nil
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}
