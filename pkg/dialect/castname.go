package dialect

import (
	"regexp"
	"strings"
)

// Shapes recognized by the name-cast pass. The trailing \w? capture in
// castVarcharPattern stands in for a negative lookahead: a word
// character right after the column reference means it is a longer
// identifier and must not be cast.
var (
	locateCastPattern   = regexp.MustCompile("(?i)locate\\(([^,]+),\\s*([`\"]?name[`\"]?)\\s*\\)")
	funcCoalescePattern = regexp.MustCompile("(?i)(strpos|ifnull|coalesce)\\(\\s*([`\"]?name[`\"]?)\\s*,")
	castVarcharPattern  = regexp.MustCompile("(?i)([`\"]?tab[\\w`\" -]+\\.[`\"]?name[`\"]?)(\\w?)")
)

// CastName rewrites a clause so comparisons against the primary id
// column are explicitly cast to varchar on dialects that store ids as a
// non-text type. Already-cast expressions are left untouched.
//
// Four shapes are handled: locate-style substring search,
// strpos/ifnull/coalesce first-argument usage, qualified column
// references, and anything already containing a cast (no-op).
//
// Example:
//
//	input:  ifnull(`tabBlog Post`.`name`, '')=''
//	output: ifnull(cast(`tabBlog Post`.`name` as varchar), '')=''
func (d *Dialect) CastName(column string) string {
	if !d.RequiresIDCast() {
		return column
	}

	lower := strings.ToLower(column)
	if strings.Contains(lower, "cast(") || strings.Contains(column, "::") {
		return column
	}

	if locateCastPattern.MatchString(column) {
		return locateCastPattern.ReplaceAllString(column, "locate($1, cast($2 as varchar))")
	}

	if funcCoalescePattern.MatchString(column) {
		return funcCoalescePattern.ReplaceAllString(column, "$1(cast($2 as varchar),")
	}

	return castVarcharPattern.ReplaceAllStringFunc(column, func(m string) string {
		sub := castVarcharPattern.FindStringSubmatch(m)
		if sub[2] != "" {
			return m
		}
		return "cast(" + sub[1] + " as varchar)"
	})
}
