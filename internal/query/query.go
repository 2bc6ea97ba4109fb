// Package query compiles a permission-aware, loosely-typed filter and
// field specification into a single safe SQL statement. It drives the
// condition builder, the permission clause builder, and the field/table
// resolver, then renders the assembled parts. Statement execution itself
// is delegated to the host through backend.Runner.
package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leapbase/pkg/backend"
	"github.com/leapstack-labs/leapbase/pkg/core"
	"github.com/leapstack-labs/leapbase/pkg/dialect"
	"github.com/leapstack-labs/leapbase/pkg/filter"
)

// Options carries the per-call query specification. The zero value asks
// for the default projection (the id column), no filters, default
// ordering, and strict sanitization.
type Options struct {
	// Fields is the projection list. When nil, RawFields is consulted;
	// when that is nil too, the primary id column is selected.
	Fields []string
	// RawFields accepts the legacy loosely-typed field input (string,
	// JSON, list). Ignored when Fields is set.
	RawFields any

	// Filters are AND-ed together. Accepts []filter.Filter, a map, a
	// tuple list, or a JSON string.
	Filters any
	// OrFilters are OR-ed as one group against the filters.
	OrFilters any

	// DocStatus restricts submittable documents to the given states.
	DocStatus []int

	GroupBy string
	// OrderBy overrides the default ordering when non-empty.
	OrderBy string

	LimitStart      int
	LimitPageLength int

	// Pluck reduces each row to the named column.
	Pluck    string
	Distinct bool

	// Join overrides the join kind for implied tables ("left join" by
	// default).
	Join string
	// WithChildNames adds each child table's id column to the
	// projection.
	WithChildNames bool

	IgnorePermissions bool
	// IgnoreIfnull opts out of null-coalescing in compiled predicates.
	IgnoreIfnull bool
	// SkipStrictChecks relaxes the sanitizer's comment and union rules.
	SkipStrictChecks bool
	// IgnoreDDL returns an empty result instead of failing when the
	// backing table or optional columns are missing.
	IgnoreDDL bool

	// ReferenceDocType scopes which user-permission grants are
	// applicable when querying through a link field of another doctype.
	ReferenceDocType string

	// User overrides the acting identity for this call.
	User string

	// LegacyArgSwap enables the historical fields/filters shape
	// sniffing at the boundary. Off by default; typed callers never
	// need it.
	LegacyArgSwap bool
}

type linkTable struct {
	doctype   string
	fieldname string
	tableName string
}

// Statement is the assembled query plan: the rendered parts and the
// final SQL. Built once per execution and discarded after rendering.
type Statement struct {
	Tables     string
	Fields     string
	Conditions string
	GroupBy    string
	OrderBy    string
	Limit      string
	SQL        string

	// Empty is set when the backing table is absent and IgnoreDDL was
	// requested; the caller should return no rows without executing.
	Empty bool
}

// Query compiles and optionally executes one logical query. An instance
// serves exactly one Build/Execute call at a time and holds no state
// across calls beyond its collaborators.
type Query struct {
	doctype string
	user    string
	svc     backend.Services
	dialect *dialect.Dialect
	logger  *slog.Logger
	now     func() time.Time

	// per-build state, reset on every Build
	opts            Options
	fields          []string
	filters         []filter.Filter
	orFilters       []filter.Filter
	tables          []string
	linkTables      []linkTable
	columns         []string
	conditions      []string
	groupedOr       []string
	matchConditions []string
	shared          []string
	refDocType      string
}

// New creates a query compiler for one doctype acting as the given user.
func New(svc backend.Services, d *dialect.Dialect, doctype, user string, logger *slog.Logger) *Query {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Query{
		doctype: doctype,
		user:    user,
		svc:     svc,
		dialect: d,
		logger:  logger,
		now:     time.Now,
	}
}

// primaryTable returns the quoted table name for the target doctype.
func (q *Query) primaryTable() string {
	return "`tab" + q.doctype + "`"
}

func tableName(doctype string) string {
	return "`tab" + doctype + "`"
}

// Build assembles the statement without executing it.
func (q *Query) Build(opts Options) (*Statement, error) {
	if opts.User != "" {
		q.user = opts.User
	}

	if !opts.IgnorePermissions &&
		!q.svc.Permissions.HasPermission(q.doctype, "select", q.user) &&
		!q.svc.Permissions.HasPermission(q.doctype, "read", q.user) {
		return nil, core.NewPermissionError(q.doctype)
	}

	q.reset(opts)

	if opts.LegacyArgSwap {
		q.applyLegacySwap()
	}

	if err := q.parseInput(); err != nil {
		return nil, err
	}

	columns, err := q.svc.Schema.TableColumns(q.doctype)
	if err != nil {
		if errors.Is(err, core.ErrTableMissing) && q.opts.IgnoreDDL {
			return &Statement{Empty: true}, nil
		}
		return nil, err
	}
	q.columns = columns

	if err := q.sanitizeFields(); err != nil {
		return nil, err
	}
	if err := q.extractTables(); err != nil {
		return nil, err
	}
	q.setOptionalColumns()
	if err := q.buildConditions(); err != nil {
		return nil, err
	}

	return q.assemble()
}

// Execute builds the statement and runs it through the backend runner.
func (q *Query) Execute(ctx context.Context, opts Options) ([]backend.Row, error) {
	stmt, err := q.Build(opts)
	if err != nil {
		return nil, err
	}
	if stmt.Empty {
		return nil, nil
	}

	q.logger.Debug("executing query", "doctype", q.doctype, "user", q.user)

	rows, err := q.svc.Runner.Query(ctx, stmt.SQL)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecuteList runs the query and returns positional rows, one value per
// projected column in projection order.
func (q *Query) ExecuteList(ctx context.Context, opts Options) ([][]any, error) {
	rows, err := q.Execute(ctx, opts)
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(q.fields))
	for i, f := range q.fields {
		cols[i] = columnAlias(f)
	}
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		vals := make([]any, len(cols))
		for i, col := range cols {
			vals[i] = row[col]
		}
		out = append(out, vals)
	}
	return out, nil
}

// columnAlias extracts the result-set column name of one projection
// expression: the alias when present, else the bare column name.
func columnAlias(expr string) string {
	if idx := strings.LastIndex(strings.ToLower(expr), " as "); idx >= 0 {
		return strings.Trim(strings.TrimSpace(expr[idx+4:]), "`'\"")
	}
	if idx := strings.LastIndex(expr, "."); idx >= 0 {
		expr = expr[idx+1:]
	}
	return strings.Trim(expr, "`'\"")
}

// ExecutePluck runs the query and reduces every row to the named column.
func (q *Query) ExecutePluck(ctx context.Context, opts Options) ([]any, error) {
	if opts.Pluck == "" {
		return nil, core.NewDataError("pluck column not set")
	}
	rows, err := q.Execute(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, row[opts.Pluck])
	}
	return out, nil
}

func (q *Query) reset(opts Options) {
	q.opts = opts
	q.fields = nil
	q.filters = nil
	q.orFilters = nil
	q.tables = nil
	q.linkTables = nil
	q.columns = nil
	q.conditions = nil
	q.groupedOr = nil
	q.matchConditions = nil
	q.shared = nil

	q.refDocType = opts.ReferenceDocType
	if q.refDocType == "" {
		q.refDocType = q.doctype
	}
	if q.opts.Join == "" {
		q.opts.Join = "left join"
	}
}

// applyLegacySwap preserves the historical permissive calling convention
// where fields and filters were hard to keep apart: a dict or
// list-of-lists in the fields slot is probably filters, and a list of
// plain strings in the filters slot is probably fields.
func (q *Query) applyLegacySwap() {
	if q.opts.Fields != nil {
		return
	}
	if filter.LooksLikeFilters(q.opts.RawFields) {
		q.opts.RawFields, q.opts.Filters = q.opts.Filters, q.opts.RawFields
	} else if q.opts.RawFields != nil && filter.LooksLikeFields(q.opts.Filters) {
		q.opts.RawFields, q.opts.Filters = q.opts.Filters, q.opts.RawFields
	}
}

func (q *Query) parseInput() error {
	fields := q.opts.Fields
	if fields == nil {
		parsed, err := filter.ParseFields(q.opts.RawFields)
		if err != nil {
			return err
		}
		fields = parsed
	}
	if len(fields) == 0 {
		column := q.opts.Pluck
		if column == "" {
			column = "name"
		}
		fields = []string{fmt.Sprintf("%s.`%s`", q.primaryTable(), column)}
	}
	q.fields = fields

	if err := q.resolveDottedFields(); err != nil {
		return err
	}

	var err error
	q.filters, err = filter.ParseFilters(q.doctype, q.opts.Filters)
	if err != nil {
		return err
	}
	q.orFilters, err = filter.ParseFilters(q.doctype, q.opts.OrFilters)
	if err != nil {
		return err
	}
	return nil
}

// buildConditions compiles user filters and merges in the permission
// clauses: primary filters AND-ed, or-filters OR-ed as one group.
func (q *Query) buildConditions() error {
	if err := q.buildFilterConditions(q.filters, &q.conditions); err != nil {
		return err
	}
	if err := q.buildFilterConditions(q.orFilters, &q.groupedOr); err != nil {
		return err
	}

	if len(q.opts.DocStatus) > 0 {
		states := make([]string, len(q.opts.DocStatus))
		for i, s := range q.opts.DocStatus {
			states[i] = strconv.Itoa(s)
		}
		q.conditions = append(q.conditions,
			fmt.Sprintf("%s.`docstatus` in (%s)", q.primaryTable(), strings.Join(states, ", ")))
	}

	if !q.opts.IgnorePermissions {
		match, err := q.buildMatchConditions()
		if err != nil {
			return err
		}
		if match != "" {
			q.conditions = append(q.conditions, "("+match+")")
		}
	}
	return nil
}

func (q *Query) buildFilterConditions(filters []filter.Filter, conditions *[]string) error {
	for _, f := range filters {
		if f.IsRaw() {
			*conditions = append(*conditions, f.Raw)
			continue
		}
		cond, err := q.prepareFilterCondition(f)
		if err != nil {
			return err
		}
		if cond != "" {
			*conditions = append(*conditions, cond)
		}
	}
	return nil
}

// assemble renders the final statement from the resolved parts.
func (q *Query) assemble() (*Statement, error) {
	stmt := &Statement{}

	if q.opts.WithChildNames {
		for _, t := range q.tables {
			if t != q.primaryTable() {
				q.fields = append(q.fields, fmt.Sprintf("%s.name as '%s:name'", t, strings.Trim(t, "`")[3:]))
			}
		}
	}

	// table list with joins
	stmt.Tables = q.tables[0]
	for _, child := range q.tables[1:] {
		parentName := q.dialect.CastName(q.tables[0] + ".name")
		stmt.Tables += fmt.Sprintf(" %s %s on (%s.parenttype = %s and %s.parent = %s)",
			q.opts.Join, child, child, q.svc.Escaper.Escape(q.doctype, false), child, parentName)
	}
	for _, link := range q.linkTables {
		stmt.Tables += fmt.Sprintf(" %s %s on (%s.`name` = %s.`%s`)",
			q.opts.Join, link.tableName, link.tableName, q.tables[0], link.fieldname)
	}

	if len(q.groupedOr) > 0 {
		q.conditions = append(q.conditions, "("+strings.Join(q.groupedOr, " or ")+")")
	}
	stmt.Conditions = strings.Join(q.conditions, " and ")

	q.qualifyFields()
	q.castNameFields()
	stmt.Fields = strings.Join(q.wrapFields(), ", ")

	orderBy, err := q.resolveOrderBy()
	if err != nil {
		return nil, err
	}
	if err := q.validateOrderGroup(orderBy); err != nil {
		return nil, err
	}
	if err := q.validateOrderGroup(q.opts.GroupBy); err != nil {
		return nil, err
	}

	stmt.OrderBy = orderBy
	stmt.GroupBy = q.opts.GroupBy
	stmt.Limit = q.renderLimit()

	if q.opts.Distinct {
		stmt.Fields = "distinct " + stmt.Fields
		// distinct and default ordering are mutually exclusive
		stmt.OrderBy = ""
	}

	// strict projection dialects need the order column selected when
	// grouping
	if q.dialect.RequiresIDCast() && stmt.OrderBy != "" && stmt.GroupBy != "" {
		q.injectOrderProjection(stmt)
	}

	stmt.SQL = renderSQL(stmt)
	return stmt, nil
}

func renderSQL(stmt *Statement) string {
	var b strings.Builder
	b.WriteString("select ")
	b.WriteString(stmt.Fields)
	b.WriteString(" from ")
	b.WriteString(stmt.Tables)
	if stmt.Conditions != "" {
		b.WriteString(" where ")
		b.WriteString(stmt.Conditions)
	}
	if stmt.GroupBy != "" {
		b.WriteString(" group by ")
		b.WriteString(stmt.GroupBy)
	}
	if stmt.OrderBy != "" {
		b.WriteString(" order by ")
		b.WriteString(stmt.OrderBy)
	}
	if stmt.Limit != "" {
		b.WriteString(" ")
		b.WriteString(stmt.Limit)
	}
	return b.String()
}

func (q *Query) renderLimit() string {
	if q.opts.LimitPageLength > 0 {
		return fmt.Sprintf("limit %d offset %d", q.opts.LimitPageLength, q.opts.LimitStart)
	}
	return ""
}
