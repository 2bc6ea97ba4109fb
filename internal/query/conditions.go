package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapbase/pkg/core"
	"github.com/leapstack-labs/leapbase/pkg/dialect"
	"github.com/leapstack-labs/leapbase/pkg/filter"
)

// prepareFilterCondition compiles one filter into a predicate fragment
// of the form
//
//	coalesce(`tabDocType`.`fieldname`, fallback) operator value
//
// dropping the coalesce wrap when the column cannot be null, the caller
// opted out, or the comparison would match without it.
func (q *Query) prepareFilterCondition(f filter.Filter) (string, error) {
	tname := tableName(f.DocType)
	if !q.hasTable(tname) {
		if err := q.appendTable(tname); err != nil {
			return "", err
		}
	}

	columnName := fmt.Sprintf("%s.`%s`", tname, f.Fieldname)
	if containsCoalesce(f.Fieldname) {
		columnName = f.Fieldname
	}
	columnName = q.dialect.CastName(columnName)

	op := f.Operator
	value := ""
	fallback := "''"
	canBeNull := true

	switch {
	case op.IsHierarchy():
		ids, err := q.hierarchyIDs(f)
		if err != nil {
			return "", err
		}
		value = q.literalList(ids)
		if op == filter.NotAncestorsOf || op == filter.NotDescendantsOf {
			op = filter.NotIn
		} else {
			op = filter.In
		}

	case op == filter.In || op == filter.NotIn:
		values := listValues(f.Value)
		// for `in` the coalesce is only needed when the set includes
		// the empty value; for `not in` the column may hold nulls, so
		// it always stays
		if op == filter.In {
			canBeNull = len(values) == 0 || containsEmpty(values)
		}
		value = q.literalList(values)

	default:
		df, _ := q.svc.Schema.Field(f.DocType, f.Fieldname)
		if df != nil && df.Fieldtype.IsNumeric() {
			canBeNull = false
		}

		if op.IsRelativeDate() {
			from, to, err := q.relativeDateRange(op, stringValue(f.Value))
			if err != nil {
				return "", err
			}
			op = filter.Between
			value = q.renderDateRange(from, to, df)
			fallback = "'" + dialect.FallbackDatetime + "'"
		} else if (op == filter.Gt || op == filter.Lt) && isAuditColumn(f.Fieldname) {
			value = q.svc.Escaper.Escape(stringValue(f.Value), false)
			fallback = "'" + dialect.FallbackDatetime + "'"
		} else if op == filter.Between && (isAuditColumn(f.Fieldname) || isDateField(df)) {
			value = q.betweenDateFilter(f.Value, df)
			fallback = "'" + dialect.FallbackDatetime + "'"
		} else if op == filter.Is {
			switch stringValue(f.Value) {
			case "set":
				op = filter.Ne
			case "not set":
				op = filter.Eq
			default:
				return "", core.NewDataError("invalid value %v for `is` filter, expected 'set' or 'not set'", f.Value)
			}
			value = "''"
			canBeNull = true
			if !containsCoalesce(columnName) {
				columnName = fmt.Sprintf("coalesce(%s, '')", columnName)
			}
		} else if df != nil && df.Fieldtype == core.FieldTypeDate {
			value = q.svc.Escaper.Escape(q.dialect.FormatDate(f.Value), false)
			fallback = "'" + dialect.FallbackDate + "'"
		} else if _, isTime := f.Value.(time.Time); isTime || (df != nil && df.Fieldtype == core.FieldTypeDatetime) {
			value = q.svc.Escaper.Escape(q.dialect.FormatDatetime(f.Value), false)
			fallback = "'" + dialect.FallbackDatetime + "'"
		} else if df != nil && df.Fieldtype == core.FieldTypeTime {
			value = q.svc.Escaper.Escape(q.dialect.FormatTime(f.Value), false)
			fallback = "'" + dialect.FallbackTime + "'"
		} else if op == filter.Like || op == filter.NotLike || (isString(f.Value) && (df == nil || !df.Fieldtype.IsNumeric())) {
			s := stringValue(f.Value)
			if op == filter.Like || op == filter.NotLike {
				// backslash is the like escape character; escape the
				// percent too so user wildcards stay literal
				s = strings.ReplaceAll(s, `\`, `\\`)
				value = q.svc.Escaper.Escape(s, true)
			} else {
				value = q.svc.Escaper.Escape(s, false)
			}
		} else if op == filter.Eq && df != nil && (df.Fieldtype == core.FieldTypeLink || df.Fieldtype == core.FieldTypeData) {
			value = q.svc.Escaper.Escape(stringValue(f.Value), false)
		} else if f.Fieldname == "name" {
			value = q.svc.Escaper.Escape(stringValue(f.Value), false)
		} else {
			value = strconv.FormatFloat(floatValue(f.Value), 'f', -1, 64)
			fallback = "0"
		}

		// column-to-column comparison: never coalesced, never quoted
		if col, ok := f.Value.(filter.Column); ok {
			canBeNull = false
			qc := q.dialect.ValueQuote
			value = fmt.Sprintf("%s.%s%s%s", tname, qc, col.Name, qc)
		}
	}

	operator := string(op)
	skipCoalesce := q.opts.IgnoreIfnull ||
		!canBeNull ||
		(truthy(f.Value) && (op == filter.Eq || op == filter.Like)) ||
		containsCoalesce(columnName)

	if skipCoalesce {
		if op == filter.Like {
			operator = q.dialect.LikeOperator
		}
		return fmt.Sprintf("%s %s %s", columnName, operator, value), nil
	}
	return fmt.Sprintf("coalesce(%s, %s) %s %s", columnName, fallback, operator, value), nil
}

// hierarchyIDs resolves an ancestors/descendants filter into the literal
// id set nested inside (or enclosing) the anchor record's bounds. An
// empty anchor yields no ids, which compiles to the never-matching
// in ('') form.
func (q *Query) hierarchyIDs(f filter.Filter) ([]string, error) {
	refDoctype := f.DocType
	if df, ok := q.svc.Schema.Field(f.DocType, f.Fieldname); ok && df.Options != "" {
		refDoctype = df.Options
	}

	anchor := stringValue(f.Value)
	if anchor == "" {
		return nil, nil
	}

	lft, rgt, err := q.svc.Hierarchy.Bounds(refDoctype, anchor)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bounds of %s %q: %w", refDoctype, anchor, err)
	}

	if f.Operator == filter.DescendantsOf || f.Operator == filter.NotDescendantsOf {
		return q.svc.Hierarchy.Descendants(refDoctype, lft, rgt)
	}
	return q.svc.Hierarchy.Ancestors(refDoctype, lft, rgt)
}

// literalList renders an escaped literal set. The empty set compiles to
// ('') which is satisfiable-false without breaking 3-value logic.
func (q *Query) literalList(values []string) string {
	if len(values) == 0 {
		return "('')"
	}
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = q.svc.Escaper.Escape(strings.TrimSpace(v), false)
	}
	return "(" + strings.Join(escaped, ", ") + ")"
}

func (q *Query) hasTable(tname string) bool {
	for _, t := range q.tables {
		if t == tname {
			return true
		}
	}
	return false
}

func containsCoalesce(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "ifnull(") || strings.Contains(lower, "coalesce(")
}

func isAuditColumn(fieldname string) bool {
	return fieldname == "creation" || fieldname == "modified"
}

func isDateField(df *core.DocField) bool {
	return df != nil && (df.Fieldtype == core.FieldTypeDate || df.Fieldtype == core.FieldTypeDatetime)
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

// listValues normalizes an in/not-in value: strings split on commas,
// slices taken as-is.
func listValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return strings.Split(t, ",")
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, stringValue(item))
		}
		return out
	default:
		return []string{stringValue(v)}
	}
}

func containsEmpty(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02 15:04:05.000000")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func floatValue(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// truthy mirrors the loose truthiness of the caller protocol: nil, empty
// string, zero, and false are all "no value".
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case []string:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
