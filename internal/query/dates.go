package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapbase/pkg/core"
	"github.com/leapstack-labs/leapbase/pkg/filter"
)

// relativeDateRange resolves a named relative window ("previous"/"next"
// plus a span, or a direct timespan name) into absolute dates.
func (q *Query) relativeDateRange(op filter.Operator, value string) (time.Time, time.Time, error) {
	spanNames := map[string]string{
		"1 week":   "week",
		"1 month":  "month",
		"3 months": "quarter",
		"6 months": "6 months",
		"1 year":   "year",
	}
	periods := map[filter.Operator]string{
		filter.Previous: "last",
		filter.Next:     "next",
	}

	timespan := value
	if op != filter.Timespan {
		span, ok := spanNames[strings.TrimSpace(value)]
		if !ok {
			return time.Time{}, time.Time{}, core.NewDataError("unknown relative date span %q", value)
		}
		timespan = periods[op] + " " + span
	}

	return timespanRange(timespan, q.now())
}

// timespanRange maps a timespan name to a closed [from, to] date range.
// Weeks start on Monday.
func timespanRange(timespan string, now time.Time) (time.Time, time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	weekStart := func(t time.Time) time.Time {
		offset := (int(t.Weekday()) + 6) % 7
		return t.AddDate(0, 0, -offset)
	}
	monthStart := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
	quarterStart := func(t time.Time) time.Time {
		qm := time.Month((int(t.Month())-1)/3*3 + 1)
		return time.Date(t.Year(), qm, 1, 0, 0, 0, 0, t.Location())
	}
	yearStart := func(t time.Time) time.Time {
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	}

	switch strings.ToLower(strings.TrimSpace(timespan)) {
	case "today":
		return today, today, nil
	case "yesterday":
		d := today.AddDate(0, 0, -1)
		return d, d, nil
	case "tomorrow":
		d := today.AddDate(0, 0, 1)
		return d, d, nil

	case "this week":
		start := weekStart(today)
		return start, start.AddDate(0, 0, 6), nil
	case "this month":
		start := monthStart(today)
		return start, start.AddDate(0, 1, -1), nil
	case "this quarter":
		start := quarterStart(today)
		return start, start.AddDate(0, 3, -1), nil
	case "this year":
		start := yearStart(today)
		return start, start.AddDate(1, 0, -1), nil

	case "last week":
		start := weekStart(today).AddDate(0, 0, -7)
		return start, start.AddDate(0, 0, 6), nil
	case "last month":
		start := monthStart(today).AddDate(0, -1, 0)
		return start, start.AddDate(0, 1, -1), nil
	case "last quarter":
		start := quarterStart(today).AddDate(0, -3, 0)
		return start, start.AddDate(0, 3, -1), nil
	case "last 6 months":
		return today.AddDate(0, -6, 0), today, nil
	case "last year":
		start := yearStart(today).AddDate(-1, 0, 0)
		return start, start.AddDate(1, 0, -1), nil

	case "next week":
		start := weekStart(today).AddDate(0, 0, 7)
		return start, start.AddDate(0, 0, 6), nil
	case "next month":
		start := monthStart(today).AddDate(0, 1, 0)
		return start, start.AddDate(0, 1, -1), nil
	case "next quarter":
		start := quarterStart(today).AddDate(0, 3, 0)
		return start, start.AddDate(0, 3, -1), nil
	case "next 6 months":
		return today, today.AddDate(0, 6, 0), nil
	case "next year":
		start := yearStart(today).AddDate(1, 0, 0)
		return start, start.AddDate(1, 0, -1), nil
	}

	return time.Time{}, time.Time{}, core.NewDataError("unknown timespan %q", timespan)
}

// renderDateRange renders an absolute range for a rewritten relative
// date filter.
func (q *Query) renderDateRange(from, to time.Time, df *core.DocField) string {
	if df != nil && df.Fieldtype == core.FieldTypeDate {
		return fmt.Sprintf("'%s' AND '%s'", q.dialect.FormatDate(from), q.dialect.FormatDate(to))
	}
	// make the interval inclusive of the whole end day
	return fmt.Sprintf("'%s' AND '%s'", q.dialect.FormatDatetime(from), q.dialect.FormatDatetime(to.AddDate(0, 0, 1)))
}

// betweenDateFilter expands a between value into a closed interval
// [from, to+1day) so that a record dated exactly on the upper bound
// still matches.
func (q *Query) betweenDateFilter(value any, df *core.DocField) string {
	today := q.dialect.FormatDate(q.now())
	from, to := today, today

	if pair, ok := value.([]any); ok {
		if len(pair) >= 1 {
			from = stringValue(pair[0])
		}
		if len(pair) >= 2 {
			to = stringValue(pair[1])
		}
	} else if pair, ok := value.([]string); ok {
		if len(pair) >= 1 {
			from = pair[0]
		}
		if len(pair) >= 2 {
			to = pair[1]
		}
	}

	isDatetime := df == nil || df.Fieldtype == core.FieldTypeDatetime
	if isDatetime {
		to = shiftDate(to, 1)
	}

	if isDatetime {
		return fmt.Sprintf("'%s' AND '%s'", q.dialect.FormatDatetime(from), q.dialect.FormatDatetime(to))
	}
	return fmt.Sprintf("'%s' AND '%s'", q.dialect.FormatDate(from), q.dialect.FormatDate(to))
}

// shiftDate adds days to a calendar date string, tolerating a datetime
// suffix.
func shiftDate(value string, days int) string {
	datePart := value
	rest := ""
	if len(value) > len("2006-01-02") {
		datePart = value[:len("2006-01-02")]
		rest = value[len("2006-01-02"):]
	}
	t, err := time.Parse("2006-01-02", datePart)
	if err != nil {
		return value
	}
	return t.AddDate(0, 0, days).Format("2006-01-02") + rest
}
