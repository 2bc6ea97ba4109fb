package query

import (
	"fmt"
	"regexp"
	"strings"
)

var orderByKeywordPattern = regexp.MustCompile(`(?i) order by | asc| desc`)

// resolveOrderBy computes the ORDER BY expression: explicit override,
// else the doctype's configured sort field(s), else modified descending.
// Submittable doctypes always sort drafts first.
func (q *Query) resolveOrderBy() (string, error) {
	if q.opts.OrderBy != "" {
		return q.opts.OrderBy, nil
	}

	// a lone group function without group by must not get a default
	// ordering
	if len(q.fields) == 1 && q.opts.GroupBy == "" {
		lower := strings.ToLower(q.fields[0])
		if strings.HasPrefix(lower, "count(") ||
			strings.HasPrefix(lower, "min(") ||
			strings.HasPrefix(lower, "max(") {
			return "", nil
		}
	}

	orderBy := ""
	sortField := q.svc.Schema.SortField(q.doctype)

	if strings.Contains(sortField, ",") {
		// multi-sort definition like "idx desc, modified desc"
		var parts []string
		for _, part := range strings.Split(sortField, ",") {
			words := strings.Fields(part)
			if len(words) < 2 {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s.`%s` %s", q.primaryTable(), words[0], words[1]))
		}
		orderBy = strings.Join(parts, ", ")
	} else {
		field := sortField
		order := q.svc.Schema.SortOrder(q.doctype)
		if field == "" {
			field = "modified"
		}
		if order == "" {
			order = "desc"
		}
		orderBy = fmt.Sprintf("%s.`%s` %s", q.primaryTable(), field, order)
	}

	// draft documents always on top
	if q.svc.Schema.IsSubmittable(q.doctype) {
		orderBy = fmt.Sprintf("%s.docstatus asc, %s", q.primaryTable(), orderBy)
	}

	return orderBy, nil
}

// injectOrderProjection satisfies strict column-selection dialects:
// when both group by and order by are present and the order column is
// not already selected/aggregated, select MAX(column) under the order
// column's name and order by that.
func (q *Query) injectOrderProjection(stmt *Statement) {
	orderField := strings.TrimSpace(orderByKeywordPattern.ReplaceAllString(stmt.OrderBy, ""))
	if orderField == "" || strings.Contains(stmt.Fields, orderField) {
		return
	}

	orderColumn := strings.ReplaceAll(orderField, "`", "")
	extracted := orderColumn
	if idx := strings.Index(extracted, "."); idx >= 0 {
		extracted = extracted[idx+1:]
	}

	stmt.Fields += fmt.Sprintf(", MAX(%s) as `%s`", extracted, orderColumn)
	stmt.OrderBy = strings.ReplaceAll(stmt.OrderBy, orderField, fmt.Sprintf("`%s`", orderColumn))
}
