// Package dialect provides SQL dialect configuration for the query
// compiler: identifier quoting, literal formatting, null-fallback
// sentinels, and the id-column cast pass needed on dialects that store
// ids as a non-text type.
package dialect

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Sentinel fallbacks substituted for physically-null columns so that
// comparisons keep matching rows. The datetime value is the epoch-like
// minimum the platform uses everywhere.
const (
	FallbackDatetime = "0001-01-01 00:00:00.000000"
	FallbackDate     = "0001-01-01"
	FallbackTime     = "00:00:00"
)

// Dialect describes the SQL flavor a query is compiled for.
type Dialect struct {
	Name string

	// IDsStoredAsText is true when the primary id column is already a
	// text type and needs no explicit cast in comparisons.
	IDsStoredAsText bool

	// LikeOperator is the case-insensitive pattern operator; "ilike" on
	// postgres-family dialects, plain "like" elsewhere.
	LikeOperator string

	// ValueQuote wraps a column-reference marker on the right-hand side
	// of a comparison.
	ValueQuote string
}

// RequiresIDCast reports whether id comparisons must be cast to varchar.
func (d *Dialect) RequiresIDCast() bool { return !d.IDsStoredAsText }

// FormatDate renders a date literal (unquoted) for this dialect.
// Accepts time.Time or a pre-formatted string.
func (d *Dialect) FormatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02")
	case string:
		return t
	default:
		return ""
	}
}

// FormatDatetime renders a datetime literal (unquoted) for this dialect.
func (d *Dialect) FormatDatetime(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02 15:04:05.000000")
	case string:
		if len(t) == len("2006-01-02") {
			return t + " 00:00:00.000000"
		}
		return t
	default:
		return ""
	}
}

// FormatTime renders a time-of-day literal (unquoted).
func (d *Dialect) FormatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format("15:04:05.000000")
	case string:
		return t
	default:
		return ""
	}
}

var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]*Dialect)
)

// Get returns a dialect by name.
func Get(name string) (*Dialect, bool) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	d, ok := dialects[strings.ToLower(name)]
	return d, ok
}

// Register registers a dialect in the global registry. Called by the
// builtin dialects in their init functions.
func Register(d *Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[strings.ToLower(d.Name)] = d
}

// List returns all registered dialect names, sorted.
func List() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
