package query

import (
	"regexp"
	"strings"

	"github.com/leapstack-labs/leapbase/pkg/core"
)

// Injection shapes checked against every field expression. These are a
// defense-in-depth denylist: permission checks and identifier quoting
// remain the primary barriers.
var (
	subQueryPattern         = regexp.MustCompile(`^.*[,();@].*`)
	isQueryPattern          = regexp.MustCompile(`(?i)^(select|delete|update|drop|create)\s`)
	isQueryPredicatePattern = regexp.MustCompile(`(?i)^\s*[0-9a-zA-Z]*\s*( from | group by | order by | where | join )`)
	fieldQuotePattern       = regexp.MustCompile(`^[0-9a-zA-Z]+\s*'`)
	fieldCommaPattern       = regexp.MustCompile(`^[0-9a-zA-Z]+\s*,`)
	strictFieldPattern      = regexp.MustCompile(`.*/\*.*`)
	strictUnionPattern      = regexp.MustCompile(`(?i)\sunion.*\s`)
	orderGroupPattern       = regexp.MustCompile("[^a-z0-9\\-_ ,`'\"\\.\\(\\)]")
)

var blacklistedKeywords = []string{
	"select", "create", "insert", "delete", "drop", "update", "case", "show",
}

var blacklistedFunctions = []string{
	"concat", "concat_ws", "if", "ifnull", "nullif", "coalesce",
	"connection_id", "current_user", "database", "last_insert_id",
	"session_user", "system_user", "user", "version", "global",
}

// sanitizeFields rejects field expressions that look like SQL injection
// vectors: sub-queries, banned function calls, global variable access,
// bare statements, and classic trailing-quote shapes. Strict mode also
// rejects inline comments and unions.
func (q *Query) sanitizeFields() error {
	for _, field := range q.fields {
		lower := strings.ToLower(field)

		if subQueryPattern.MatchString(field) {
			for _, keyword := range blacklistedKeywords {
				if strings.Contains(lower, "("+keyword) {
					return restrictedError()
				}
			}
			for _, fn := range blacklistedFunctions {
				if strings.Contains(lower, fn+"(") {
					return restrictedError()
				}
			}
			if strings.Contains(lower, "@") {
				// global variable access
				return restrictedError()
			}
		}

		if fieldQuotePattern.MatchString(field) {
			return restrictedError()
		}
		if fieldCommaPattern.MatchString(field) {
			return restrictedError()
		}
		if isQueryPattern.MatchString(field) || isQueryPredicatePattern.MatchString(field) {
			return restrictedError()
		}

		if !q.opts.SkipStrictChecks {
			if strictFieldPattern.MatchString(field) {
				return core.NewDataError("illegal SQL query")
			}
			if strictUnionPattern.MatchString(lower) {
				return core.NewDataError("illegal SQL query")
			}
		}
	}
	return nil
}

func restrictedError() error {
	return core.NewDataError("use of sub-query or function is restricted")
}

// validateOrderGroup checks an order-by or group-by expression: no
// nested selects, only characters from a conservative allowlist, and no
// reference to a table outside the join set.
func (q *Query) validateOrderGroup(expr string) error {
	if expr == "" {
		return nil
	}

	lower := strings.ToLower(expr)
	if strings.Contains(lower, "select") && strings.Contains(lower, "from") {
		return core.NewDataError("cannot use sub-query in order by")
	}

	if orderGroupPattern.MatchString(lower) {
		return core.NewDataError("illegal SQL query")
	}

	for _, field := range strings.Split(expr, ",") {
		trimmed := strings.TrimSpace(field)
		if !strings.Contains(trimmed, ".") || !strings.HasPrefix(trimmed, "`tab") {
			continue
		}
		table := strings.SplitN(trimmed, ".", 2)[0]
		if !q.hasTable(table) {
			name := strings.Trim(table, "`")[3:]
			return core.NewDataError("please select at least 1 column from %s to sort/group", name)
		}
	}
	return nil
}
