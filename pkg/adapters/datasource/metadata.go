package datasource

// TableMetadata represents a discovered database table.
type TableMetadata struct {
	SchemaName string
	TableName  string
}

// DisplayName is the name the model should use in generated SQL: the bare
// table name for the default dbo schema, schema-qualified otherwise.
func (t TableMetadata) DisplayName() string {
	if t.SchemaName == "" || t.SchemaName == "dbo" {
		return t.TableName
	}
	return t.SchemaName + "." + t.TableName
}

// ColumnMetadata represents a discovered database column.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	MaxLength       *int
	OrdinalPosition int
	Description     string // vendor-native description; empty when not set
}
