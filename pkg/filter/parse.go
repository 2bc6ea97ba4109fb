package filter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapbase/pkg/core"
)

// ParseFilters converts any supported caller shape into a normalized
// filter list. Accepted shapes:
//
//   - nil: no filters
//   - string: JSON-encoded list/map, or a raw predicate
//   - map[string]any: {fieldname: value} or {fieldname: [op, value]}
//   - []any / [][]any: tuples of (fieldname, op, value) or
//     (doctype, fieldname, op, value), plus raw predicate strings
//   - []Filter: passed through after operator validation
func ParseFilters(doctype string, input any) ([]Filter, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil

	case []Filter:
		for _, f := range v {
			if f.IsRaw() {
				continue
			}
			if _, err := ParseOperator(string(f.Operator)); err != nil {
				return nil, err
			}
		}
		return withDocType(doctype, v), nil

	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			var decoded any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
				return nil, core.NewDataError("malformed filters: %v", err)
			}
			return ParseFilters(doctype, decoded)
		}
		// raw predicate string
		return []Filter{{DocType: doctype, Raw: v}}, nil

	case map[string]any:
		return mapToFilters(doctype, v)

	case []any:
		return listToFilters(doctype, v)

	case [][]any:
		anys := make([]any, len(v))
		for i, t := range v {
			anys[i] = t
		}
		return listToFilters(doctype, anys)

	default:
		return nil, core.NewDataError("unsupported filters shape %T", input)
	}
}

func withDocType(doctype string, filters []Filter) []Filter {
	for i := range filters {
		if filters[i].DocType == "" {
			filters[i].DocType = doctype
		}
	}
	return filters
}

// mapToFilters expands {field: value} / {field: [op, value]} into tuples.
func mapToFilters(doctype string, m map[string]any) ([]Filter, error) {
	out := make([]Filter, 0, len(m))
	for key, value := range m {
		f, err := makeFilterTuple(doctype, key, value)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// makeFilterTuple mirrors the shorthand where a bare value means
// equality and a two-element list carries (operator, value).
func makeFilterTuple(doctype, key string, value any) (Filter, error) {
	if pair, ok := value.([]any); ok && len(pair) == 2 {
		opStr, isStr := pair[0].(string)
		if isStr {
			op, err := ParseOperator(opStr)
			if err != nil {
				return Filter{}, err
			}
			return Filter{DocType: doctype, Fieldname: key, Operator: op, Value: pair[1]}, nil
		}
	}
	return Filter{DocType: doctype, Fieldname: key, Operator: Eq, Value: value}, nil
}

func listToFilters(doctype string, list []any) ([]Filter, error) {
	out := make([]Filter, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case string:
			out = append(out, Filter{DocType: doctype, Raw: t})
		case Filter:
			out = append(out, withDocType(doctype, []Filter{t})[0])
		case []any:
			f, err := tupleToFilter(doctype, t)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		case map[string]any:
			fs, err := mapToFilters(doctype, t)
			if err != nil {
				return nil, err
			}
			out = append(out, fs...)
		default:
			return nil, core.NewDataError("unsupported filter element %T", item)
		}
	}
	return out, nil
}

func tupleToFilter(doctype string, tuple []any) (Filter, error) {
	var dt, field, op string
	var value any

	switch len(tuple) {
	case 3:
		dt = doctype
		field, _ = tuple[0].(string)
		op, _ = tuple[1].(string)
		value = tuple[2]
	case 4:
		dt, _ = tuple[0].(string)
		field, _ = tuple[1].(string)
		op, _ = tuple[2].(string)
		value = tuple[3]
	default:
		return Filter{}, core.NewDataError("filter tuple must have 3 or 4 elements, got %d", len(tuple))
	}

	if field == "" {
		return Filter{}, core.NewDataError("filter tuple missing fieldname")
	}
	parsed, err := ParseOperator(op)
	if err != nil {
		return Filter{}, err
	}
	return Filter{DocType: dt, Fieldname: field, Operator: parsed, Value: value}, nil
}

// ParseFields converts a field specification into a list of projection
// expressions. A string is either "*", a JSON list, or comma-separated
// names. Empty entries are dropped.
func ParseFields(input any) ([]string, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case []string:
		return dropEmpty(v), nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		if trimmed == "*" {
			return []string{"*"}, nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var decoded []string
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return dropEmpty(decoded), nil
			}
		}
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return dropEmpty(parts), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, core.NewDataError("field entry must be a string, got %T", item)
			}
			out = append(out, s)
		}
		return dropEmpty(out), nil
	default:
		return nil, core.NewDataError("unsupported fields shape %T", input)
	}
}

func dropEmpty(fields []string) []string {
	out := fields[:0]
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// LooksLikeFilters reports whether a value passed positionally as a
// field list is structurally a filter specification: a map, or a list
// whose first element is itself a list.
//
// This shape sniffing exists only for the legacy permissive calling
// convention. New callers should use the typed Options fields directly.
func LooksLikeFilters(fields any) bool {
	switch v := fields.(type) {
	case map[string]any:
		return true
	case []any:
		if len(v) == 0 {
			return false
		}
		_, isList := v[0].([]any)
		return isList
	case [][]any:
		return true
	}
	return false
}

// LooksLikeFields reports whether a value passed as filters is probably
// a field list: a list of more than one plain string.
func LooksLikeFields(filters any) bool {
	v, ok := filters.([]any)
	if !ok || len(v) <= 1 {
		if ss, ok := filters.([]string); ok {
			return len(ss) > 1
		}
		return false
	}
	for _, item := range v {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

// String renders a filter for logs and job/debug output.
func (f Filter) String() string {
	if f.IsRaw() {
		return f.Raw
	}
	return fmt.Sprintf("(%s.%s %s %v)", f.DocType, f.Fieldname, f.Operator, f.Value)
}
