package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbase/pkg/filter"
)

func buildConditionsFor(t *testing.T, filters any) string {
	t.Helper()
	q := newTaskQuery(t, testServices())
	stmt, err := q.Build(Options{Filters: filters, IgnorePermissions: true})
	require.NoError(t, err)
	return stmt.Conditions
}

func TestPrepareFilterCondition(t *testing.T) {
	tests := []struct {
		name    string
		filters any
		want    string
	}{
		{
			name:    "equality on text coalesce-skipped for truthy value",
			filters: []any{[]any{"status", "=", "Open"}},
			want:    "`tabTask`.`status` = 'Open'",
		},
		{
			name:    "equality with empty value keeps coalesce",
			filters: []any{[]any{"status", "=", ""}},
			want:    "coalesce(`tabTask`.`status`, '') = ''",
		},
		{
			name:    "numeric column never coalesced",
			filters: []any{[]any{"priority", "!=", 0}},
			want:    "`tabTask`.`priority` != 0",
		},
		{
			name:    "in list",
			filters: []any{[]any{"status", "in", []any{"Open", "Working"}}},
			want:    "`tabTask`.`status` in ('Open', 'Working')",
		},
		{
			name:    "in with empty set compiles to never-matching form",
			filters: []any{[]any{"status", "in", []any{}}},
			want:    "coalesce(`tabTask`.`status`, '') in ('')",
		},
		{
			name:    "in containing empty keeps coalesce",
			filters: []any{[]any{"status", "in", []any{"Open", ""}}},
			want:    "coalesce(`tabTask`.`status`, '') in ('Open', '')",
		},
		{
			name:    "not in always coalesces",
			filters: []any{[]any{"status", "not in", []any{"Closed"}}},
			want:    "coalesce(`tabTask`.`status`, '') not in ('Closed')",
		},
		{
			name:    "in from comma separated string",
			filters: []any{[]any{"status", "in", "Open, Working"}},
			want:    "`tabTask`.`status` in ('Open', 'Working')",
		},
		{
			name:    "is set",
			filters: []any{[]any{"status", "is", "set"}},
			want:    "coalesce(`tabTask`.`status`, '') != ''",
		},
		{
			name:    "is not set",
			filters: []any{[]any{"status", "is", "not set"}},
			want:    "coalesce(`tabTask`.`status`, '') = ''",
		},
		{
			name:    "like escapes backslash and skips coalesce",
			filters: []any{[]any{"status", "like", `a\b%`}},
			want:    "`tabTask`.`status` like 'a\\\\b%'",
		},
		{
			name:    "between on audit column shifts upper bound",
			filters: []any{[]any{"creation", "between", []any{"2026-01-01", "2026-01-31"}}},
			want:    "coalesce(`tabTask`.`creation`, '0001-01-01 00:00:00.000000') between '2026-01-01 00:00:00.000000' AND '2026-02-01 00:00:00.000000'",
		},
		{
			name:    "between on date column stays closed",
			filters: []any{[]any{"due_date", "between", []any{"2026-01-01", "2026-01-31"}}},
			want:    "coalesce(`tabTask`.`due_date`, '0001-01-01 00:00:00.000000') between '2026-01-01' AND '2026-01-31'",
		},
		{
			name:    "date column literal",
			filters: []any{[]any{"due_date", ">=", "2026-01-01"}},
			want:    "coalesce(`tabTask`.`due_date`, '0001-01-01') >= '2026-01-01'",
		},
		{
			name:    "name equality",
			filters: []any{[]any{"name", "=", "TASK-0001"}},
			want:    "`tabTask`.`name` = 'TASK-0001'",
		},
		{
			name:    "unparseable number falls back to zero",
			filters: []any{[]any{"priority", "=", "abc"}},
			want:    "`tabTask`.`priority` = 0",
		},
		{
			name:    "quote in value is escaped",
			filters: []any{[]any{"status", "=", "O'Brien"}},
			want:    "`tabTask`.`status` = 'O''Brien'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, buildConditionsFor(t, tt.filters), tt.want)
		})
	}
}

func TestColumnToColumnComparison(t *testing.T) {
	got := buildConditionsFor(t, []filter.Filter{
		{Fieldname: "modified", Operator: filter.Gt, Value: filter.Column{Name: "creation"}},
	})
	assert.Equal(t, "`tabTask`.`modified` > `tabTask`.`creation`", got)
}

func TestIgnoreIfnullDropsCoalesce(t *testing.T) {
	q := newTaskQuery(t, testServices())
	stmt, err := q.Build(Options{
		Filters:           []any{[]any{"status", "is", "set"}},
		IgnoreIfnull:      false,
		IgnorePermissions: true,
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.Conditions, "coalesce(")

	stmt, err = q.Build(Options{
		Filters:           []any{[]any{"status", "!=", ""}},
		IgnoreIfnull:      true,
		IgnorePermissions: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "`tabTask`.`status` != ''", stmt.Conditions)
}

func TestInvalidIsValueRejected(t *testing.T) {
	q := newTaskQuery(t, testServices())
	_, err := q.Build(Options{
		Filters:           []any{[]any{"status", "is", "maybe"}},
		IgnorePermissions: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 'set' or 'not set'")
}

func TestHierarchyFilters(t *testing.T) {
	svc := testServices()
	svc.Hierarchy = &fakeHierarchy{
		bounds:      map[string][2]int{"Engineering": {2, 9}},
		descendants: []string{"Backend", "Frontend"},
		ancestors:   []string{"All Teams"},
	}
	q := newTaskQuery(t, svc)

	stmt, err := q.Build(Options{
		Filters:           []any{[]any{"project", "descendants of", "Engineering"}},
		IgnorePermissions: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "coalesce(`tabTask`.`project`, '') in ('Backend', 'Frontend')", stmt.Conditions)

	stmt, err = q.Build(Options{
		Filters:           []any{[]any{"project", "not ancestors of", "Engineering"}},
		IgnorePermissions: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "coalesce(`tabTask`.`project`, '') not in ('All Teams')", stmt.Conditions)
}

func TestHierarchyFilterEmptyAnchor(t *testing.T) {
	q := newTaskQuery(t, testServices())
	stmt, err := q.Build(Options{
		Filters:           []any{[]any{"project", "ancestors of", ""}},
		IgnorePermissions: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "coalesce(`tabTask`.`project`, '') in ('')", stmt.Conditions)
}

func TestLikeUsesDialectOperatorOnPostgres(t *testing.T) {
	q := New(testServices(), postgres(t), "Task", "alice@example.com", nil)
	stmt, err := q.Build(Options{
		Filters:           []any{[]any{"status", "like", "Open%"}},
		IgnorePermissions: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "`tabTask`.`status` ilike 'Open%'", stmt.Conditions)
}
