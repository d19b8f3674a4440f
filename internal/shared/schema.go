package shared

// SchemaVariant distinguishes the two shapes of the product entity table.
// Plain installations key value rows by entity_id; staged installations
// carry a row_id plus a sequence table and value rows reference row_id.
type SchemaVariant int

const (
	SchemaSingleID SchemaVariant = iota
	SchemaVersionedRow
)

// LinkColumn returns the column name value tables use to reference the
// product entity under this variant.
func (v SchemaVariant) LinkColumn() string {
	if v == SchemaVersionedRow {
		return "row_id"
	}
	return "entity_id"
}

func (v SchemaVariant) String() string {
	if v == SchemaVersionedRow {
		return "versioned-row"
	}
	return "single-id"
}

// Sentinel field values understood across resolvers.
const (
	// SentinelDelete removes the stored value entirely.
	SentinelDelete = "__DELETE__"
	// SentinelNull stores an explicit SQL NULL.
	SentinelNull = "__NULL__"
)
