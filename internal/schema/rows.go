package schema

// ColumnRow is one row of the columns catalog query
type ColumnRow struct {
	Name       string
	DataType   string
	IsNullable bool
	Default    *string
}

// ForeignKeyRow is one (local column, referenced table, referenced column) triple.
// Constraint is informational and not part of the assembled model.
type ForeignKeyRow struct {
	Constraint    string
	Column        string
	ForeignTable  string
	ForeignColumn string
	OnDelete      *string
	OnUpdate      *string
}

// IndexRow is one non primary key index. Columns holds the index columns
// joined with commas in index order.
type IndexRow struct {
	Name     string
	Columns  string
	IsUnique bool
}

// TableRows groups the raw catalog results for one table
type TableRows struct {
	Table       string
	PrimaryKey  []string
	Columns     []ColumnRow
	ForeignKeys []ForeignKeyRow
	Indexes     []IndexRow
}
