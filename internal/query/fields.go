package query

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapbase/pkg/core"
)

// sqlFunctions are projection prefixes recognized as aggregate/function
// calls; fields using them are never table-qualified or treated as
// implied table references.
var sqlFunctions = []string{
	"count(", "sum(", "avg(", "min(", "max(",
	"extract(", "dayofyear(", "locate(", "strpos(",
}

func startsWithFunction(field string) bool {
	lower := strings.ToLower(strings.TrimSpace(field))
	for _, fn := range sqlFunctions {
		if strings.HasPrefix(lower, fn) {
			return true
		}
	}
	return false
}

func containsFunction(field string) bool {
	lower := strings.ToLower(field)
	for _, fn := range sqlFunctions {
		if strings.Contains(lower, fn) {
			return true
		}
	}
	return false
}

// resolveDottedFields rewrites linkfield.fieldname projections into
// qualified references against the linked doctype's table, registering
// the implied join.
func (q *Query) resolveDottedFields() error {
	for i, field := range q.fields {
		if !strings.Contains(field, ".") || strings.Contains(field, "tab") {
			continue
		}

		expr := field
		alias := ""
		if idx := strings.Index(strings.ToLower(expr), " as "); idx >= 0 {
			alias = strings.TrimSpace(expr[idx+4:])
			expr = strings.TrimSpace(expr[:idx])
		}

		parts := strings.SplitN(expr, ".", 2)
		linkFieldname, fieldname := parts[0], parts[1]

		linkField, ok := q.svc.Schema.Field(q.doctype, linkFieldname)
		if !ok {
			return core.NewDataError("unknown field %q in %s", linkFieldname, q.doctype)
		}
		linkDoctype := linkField.Options
		if linkField.Fieldtype == core.FieldTypeLink {
			if err := q.appendLinkTable(linkDoctype, linkFieldname); err != nil {
				return err
			}
		}

		resolved := fmt.Sprintf("`tab%s`.`%s`", linkDoctype, fieldname)
		if alias != "" {
			resolved = resolved + " as " + alias
		}
		q.fields[i] = resolved
	}
	return nil
}

// extractTables derives the table list from the field references. Every
// non-primary table must pass a read permission check before joining.
func (q *Query) extractTables() error {
	q.tables = []string{q.primaryTable()}

	for _, field := range q.fields {
		if !strings.Contains(field, "tab") || !strings.Contains(field, ".") || containsFunction(field) {
			continue
		}

		table := strings.SplitN(field, ".", 2)[0]
		if lower := strings.ToLower(table); strings.HasPrefix(lower, "group_concat(") {
			table = table[len("group_concat("):]
		}
		if !strings.HasPrefix(table, "`") {
			table = "`" + table + "`"
		}
		if q.hasTable(table) || q.hasLinkTable(table) {
			continue
		}
		if err := q.appendTable(table); err != nil {
			return err
		}
	}
	return nil
}

func (q *Query) hasLinkTable(tname string) bool {
	for _, link := range q.linkTables {
		if link.tableName == tname {
			return true
		}
	}
	return false
}

func (q *Query) appendTable(tname string) error {
	q.tables = append(q.tables, tname)
	doctype := strings.Trim(tname, "`")[3:]
	return q.checkReadPermission(doctype)
}

func (q *Query) appendLinkTable(doctype, fieldname string) error {
	for _, link := range q.linkTables {
		if link.doctype == doctype && link.fieldname == fieldname {
			return nil
		}
	}
	if err := q.checkReadPermission(doctype); err != nil {
		return err
	}
	q.linkTables = append(q.linkTables, linkTable{
		doctype:   doctype,
		fieldname: fieldname,
		tableName: tableName(doctype),
	})
	return nil
}

func (q *Query) checkReadPermission(doctype string) error {
	if q.opts.IgnorePermissions {
		return nil
	}
	ptype := "read"
	if q.svc.Permissions.OnlyHasSelectPerm(doctype, q.user) {
		ptype = "select"
	}
	if !q.svc.Permissions.HasPermission(doctype, ptype, q.user) {
		return core.NewPermissionError(doctype)
	}
	return nil
}

// setOptionalColumns drops references to soft columns that are absent
// from the live table, from both the field list and the filters. This
// tolerates schema drift without failing the query.
func (q *Query) setOptionalColumns() {
	live := make(map[string]bool, len(q.columns))
	for _, c := range q.columns {
		live[c] = true
	}

	kept := q.fields[:0]
	for _, field := range q.fields {
		drop := false
		for _, opt := range core.OptionalFields {
			if strings.Contains(field, opt) && !live[opt] {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, field)
		}
	}
	q.fields = kept

	keptFilters := q.filters[:0]
	for _, f := range q.filters {
		drop := false
		for _, opt := range core.OptionalFields {
			if f.Fieldname == opt && !live[opt] {
				drop = true
				break
			}
		}
		if !drop {
			keptFilters = append(keptFilters, f)
		}
	}
	q.filters = keptFilters
}

// qualifyFields prefixes bare field names with the primary table when
// more than one table participates, so references stay unambiguous.
func (q *Query) qualifyFields() {
	if len(q.tables) <= 1 && len(q.linkTables) == 0 {
		return
	}
	for i, field := range q.fields {
		if !strings.Contains(field, ".") && !startsWithFunction(field) {
			q.fields[i] = q.tables[0] + "." + field
		}
	}
}

func (q *Query) castNameFields() {
	for i, field := range q.fields {
		q.fields[i] = q.dialect.CastName(field)
	}
}

// wrapFields quotes bare identifiers so reserved-word column names stay
// valid. Literal-looking expressions pass through unwrapped; aliased
// pairs are quoted individually.
func (q *Query) wrapFields() []string {
	wrapped := make([]string, 0, len(q.fields))
	for _, field := range q.fields {
		stripped := strings.ToLower(strings.TrimSpace(field))
		skip := strings.HasPrefix(stripped, "`") ||
			strings.HasPrefix(stripped, "*") ||
			strings.HasPrefix(stripped, `"`) ||
			strings.HasPrefix(stripped, "'") ||
			strings.Contains(stripped, "(") ||
			strings.Contains(stripped, "distinct")

		switch {
		case skip:
			wrapped = append(wrapped, field)
		case hasAsKeyword(field):
			parts := strings.Fields(field)
			if len(parts) == 3 {
				wrapped = append(wrapped, fmt.Sprintf("`%s` as %s", parts[0], parts[2]))
			} else {
				wrapped = append(wrapped, field)
			}
		default:
			wrapped = append(wrapped, "`"+field+"`")
		}
	}
	return wrapped
}

func hasAsKeyword(field string) bool {
	for _, word := range strings.Fields(strings.ToLower(field)) {
		if word == "as" {
			return true
		}
	}
	return false
}
