// Package backend declares the narrow interfaces through which the query
// compiler consumes its external collaborators: schema introspection,
// permission evaluation, hierarchy bound lookup, literal escaping, and
// statement execution. The compiler never reimplements any of these.
package backend

import (
	"context"

	"github.com/leapstack-labs/leapbase/pkg/core"
)

// Schema exposes doctype metadata and live table introspection.
type Schema interface {
	// TableColumns returns the live column set of the doctype's table.
	// Returns core.ErrTableMissing when the table does not exist.
	TableColumns(doctype string) ([]string, error)

	// Field returns the metadata for one field, if declared.
	Field(doctype, fieldname string) (*core.DocField, bool)

	// LinkFields returns all Link-typed fields of the doctype.
	LinkFields(doctype string) []core.DocField

	// SortField returns the configured default sort expression, which
	// may be a single fieldname or a comma-separated multi-sort like
	// "idx desc, modified desc". Empty means the platform default.
	SortField(doctype string) string

	// SortOrder returns "asc" or "desc" for a single-field sort.
	SortOrder(doctype string) string

	// IsSubmittable reports whether records carry a draft/submit status.
	IsSubmittable(doctype string) bool

	// IsChildTable reports whether the doctype only exists as rows of a
	// parent document.
	IsChildTable(doctype string) bool
}

// Permissions evaluates role and per-record access for a user.
type Permissions interface {
	// HasPermission reports whether the user holds the named permission
	// type (e.g. "read", "select") on the doctype.
	HasPermission(doctype, ptype, user string) bool

	// OnlyHasSelectPerm reports whether the doctype grants "select" but
	// not "read" to the user's roles.
	OnlyHasSelectPerm(doctype, user string) bool

	// RolePermissions resolves the combined role-level permission set.
	RolePermissions(doctype, user string) core.RolePermissions

	// UserPermissions returns the user's fine-grained per-record grants,
	// keyed by the doctype of the granted records.
	UserPermissions(user string) map[string][]core.UserPermission

	// Shared lists record ids directly shared with the user.
	Shared(doctype, user string) []string

	// StrictUserPermissions reports whether empty link values bypass
	// user-permission narrowing (false) or are restricted too (true).
	StrictUserPermissions() bool
}

// Hierarchy resolves nested-set bounds for tree-structured doctypes.
type Hierarchy interface {
	// Bounds returns the left/right bounds of the named record.
	Bounds(doctype, name string) (lft, rgt int, err error)

	// Descendants returns ids strictly nested inside the given bounds,
	// ordered by left bound ascending.
	Descendants(doctype string, lft, rgt int) ([]string, error)

	// Ancestors returns ids strictly enclosing the given bounds,
	// ordered by left bound descending.
	Ancestors(doctype string, lft, rgt int) ([]string, error)
}

// Escaper renders a value as a safely embeddable SQL string literal.
// When escapePercent is true, percent signs are escaped so user input
// matches literally instead of acting as a like wildcard.
type Escaper interface {
	Escape(value string, escapePercent bool) string
}

// Row is one result row keyed by column name or alias.
type Row map[string]any

// Runner executes a rendered statement against the host datastore. The
// compiler itself never executes SQL.
type Runner interface {
	Query(ctx context.Context, sql string) ([]Row, error)
}

// Services bundles the collaborators one query compilation needs.
type Services struct {
	Schema      Schema
	Permissions Permissions
	Hierarchy   Hierarchy
	Escaper     Escaper
	Hooks       *HookRegistry
	Runner      Runner
}
