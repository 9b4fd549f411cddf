// field.go defines the field metadata catalog models. The catalog is the single
// source of truth for how every entity field is labelled, typed, and rendered;
// it is loaded once per process and treated as immutable at runtime.
package models

// Field data types understood by the coercion layer.
const (
	TypeText       = "text"
	TypeNumber     = "number"
	TypePercentage = "percentage"
	TypeCurrency   = "currency"
	TypeDate       = "date"
	TypeDropdown   = "dropdown"
)

// FieldDescriptor declares one field of one entity: its storage key, the label
// shown to users (and written into audit rows), and the data type that drives
// value coercion. FieldKey is unique within an entity.
type FieldDescriptor struct {
	EntityName   string `db:"entity_name" json:"entityName"`
	FieldKey     string `db:"field_key" json:"fieldKey"`
	DisplayLabel string `db:"display_label" json:"displayLabel"`
	DataType     string `db:"data_type" json:"dataType"`
	SortOrder    int    `db:"sort_order" json:"sortOrder"`
}

// DropdownOption is one legal value for a dropdown-typed field, keyed by
// (entity, field). Options are fetched lazily and only for dropdown fields.
type DropdownOption struct {
	EntityName  string `db:"entity_name" json:"entityName"`
	FieldKey    string `db:"field_key" json:"fieldKey"`
	OptionValue string `db:"option_value" json:"optionValue"`
}
