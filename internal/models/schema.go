package models

// KeyRole is the part a column plays in the table's declared keys.
type KeyRole string

const (
	KeyRoleNone    KeyRole = "none"
	KeyRolePrimary KeyRole = "primary"
	KeyRoleUnique  KeyRole = "unique"
)

// TableCatalogEntry is one row of the table list. RowCount is nil when the
// count is unknown (timed out, denied, or never analyzed).
type TableCatalogEntry struct {
	Name                string `json:"name"`
	RowCount            *int64 `json:"rowCount"`
	RowCountApproximate bool   `json:"rowCountApproximate"`
}

// ColumnDescriptor describes a single column as reported by the catalog.
type ColumnDescriptor struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	UDTName         string   `json:"udtName"`
	Nullable        bool     `json:"nullable"`
	KeyRole         KeyRole  `json:"keyRole"`
	DefaultValue    *string  `json:"defaultValue"`
	IsAutoGenerated bool     `json:"isAutoGenerated"`
	ReadOnly        bool     `json:"readOnly"`
	MaxLength       *int     `json:"maxLength,omitempty"`
	EnumValues      []string `json:"enumValues,omitempty"`
	Position        int      `json:"position"`
}

// TableSchema is the ordered column list of one table plus its resolved identity.
type TableSchema struct {
	TableName string             `json:"tableName"`
	Columns   []ColumnDescriptor `json:"columns"`
	Identity  Identity           `json:"identity"`
}

// Column returns the descriptor for name, if present.
func (s *TableSchema) Column(name string) (*ColumnDescriptor, bool) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns the column names in physical order.
func (s *TableSchema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// PrimaryKeyColumns returns the columns flagged primary, in schema order.
func (s *TableSchema) PrimaryKeyColumns() []string {
	var pks []string
	for _, c := range s.Columns {
		if c.KeyRole == KeyRolePrimary {
			pks = append(pks, c.Name)
		}
	}
	return pks
}

// IdentitySource records how the identity column was chosen.
type IdentitySource string

const (
	IdentityFromPrimaryKey IdentitySource = "primary_key"
	IdentityFromIDColumn   IdentitySource = "id_column"
	IdentityFromFirstCol   IdentitySource = "first_column"
)

// Identity is the column used to address a single row for update and delete.
// Columns lists every member when the declared primary key is composite.
type Identity struct {
	Column  string         `json:"column"`
	Source  IdentitySource `json:"source"`
	Columns []string       `json:"columns"`
}

// Guessed reports whether the identity was not taken from a declared primary key.
func (i Identity) Guessed() bool {
	return i.Source != IdentityFromPrimaryKey
}

// Composite reports whether the declared primary key spans several columns.
func (i Identity) Composite() bool {
	return len(i.Columns) > 1
}

// Ambiguous reports whether a write addressed by this identity may hit an
// unintended row: the first-column fallback, or one member of a composite key.
func (i Identity) Ambiguous() bool {
	return i.Source == IdentityFromFirstCol || i.Composite()
}

// RowCount is the result of counting a table.
type RowCount struct {
	Total       int64
	Known       bool
	Approximate bool
}
