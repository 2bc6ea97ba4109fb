package core

// FieldType classifies a document field for query compilation.
type FieldType string

const (
	FieldTypeData     FieldType = "Data"
	FieldTypeText     FieldType = "Text"
	FieldTypeSelect   FieldType = "Select"
	FieldTypeLink     FieldType = "Link"
	FieldTypeInt      FieldType = "Int"
	FieldTypeFloat    FieldType = "Float"
	FieldTypeCurrency FieldType = "Currency"
	FieldTypePercent  FieldType = "Percent"
	FieldTypeCheck    FieldType = "Check"
	FieldTypeDate     FieldType = "Date"
	FieldTypeDatetime FieldType = "Datetime"
	FieldTypeTime     FieldType = "Time"
)

// IsNumeric reports whether the type stores a numeric value. Numeric
// columns are never null-coalesced by the condition builder.
func (t FieldType) IsNumeric() bool {
	switch t {
	case FieldTypeInt, FieldTypeFloat, FieldTypeCurrency, FieldTypePercent, FieldTypeCheck:
		return true
	}
	return false
}

// DocField is the metadata for one field of a doctype.
type DocField struct {
	Fieldname string
	Fieldtype FieldType
	// Options names the linked doctype for Link fields.
	Options string
	// IgnoreUserPermissions exempts this link field from per-record
	// permission narrowing.
	IgnoreUserPermissions bool
}

// OptionalFields are soft columns that may be absent from a live table.
// Field and filter references to them are silently dropped when missing.
var OptionalFields = []string{"_user_tags", "_comments", "_assign", "_liked_by", "_seen"}

// RolePermissions is the resolved role-level permission set for one
// doctype and user.
type RolePermissions struct {
	Read   bool
	Select bool
	// HasIfOwnerEnabled is set when any role grants rights conditioned
	// on record ownership.
	HasIfOwnerEnabled bool
	// IfOwner holds the permission types that are only available to the
	// record owner.
	IfOwner map[string]bool
}

// Get reports whether the named permission type is granted.
func (r RolePermissions) Get(ptype string) bool {
	switch ptype {
	case "read":
		return r.Read
	case "select":
		return r.Select
	}
	return false
}

// RequiresOwnerConstraint reports whether "select" or "read" is only
// available to the record creator, forcing an owner predicate into the
// query.
func (r RolePermissions) RequiresOwnerConstraint() bool {
	if !r.HasIfOwnerEnabled || len(r.IfOwner) == 0 {
		return false
	}
	// select or read without the if-owner condition means no constraint
	for _, ptype := range []string{"select", "read"} {
		if r.Get(ptype) && !r.IfOwner[ptype] {
			return false
		}
	}
	return true
}

// UserPermission is one fine-grained per-record grant: the user may see
// the named record, optionally only in the context of one doctype.
type UserPermission struct {
	Doc           string
	ApplicableFor string
}
