// Package recurrence computes occurrence dates for recurring tasks.
//
// Dates are naive calendar dates in YYYY-MM-DD form. They are parsed into
// UTC midnight so day arithmetic never crosses a DST boundary.
package recurrence

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage format of task dates.
const DateLayout = "2006-01-02"

// Kind is a recurrence rule type.
type Kind int

const (
	Daily Kind = iota + 1
	Weekly
	Weekday
	Monthly
	Yearly
	Custom
)

var kindNames = map[Kind]string{
	Daily:   "daily",
	Weekly:  "weekly",
	Weekday: "weekday",
	Monthly: "monthly",
	Yearly:  "yearly",
	Custom:  "custom",
}

// Kinds lists every supported kind in display order.
func Kinds() []Kind {
	return []Kind{Daily, Weekly, Weekday, Monthly, Yearly, Custom}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a stored recurrence type to a Kind.
// An empty or unknown value reports false: such a task never recurs.
func ParseKind(raw string) (Kind, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for kind, name := range kindNames {
		if name == value {
			return kind, true
		}
	}
	return 0, false
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

// FormatDate renders the calendar date of t, ignoring its clock and zone.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextDate returns the occurrence that follows current.
// A non-positive interval counts as 1. The second result is false for kinds
// outside the enum.
//
// Monthly and yearly steps use time.AddDate, which normalizes overflow:
// 2024-01-31 plus one month is 2024-03-02 and 2024-02-29 plus one year is
// 2025-03-01.
func NextDate(current time.Time, kind Kind, interval int) (time.Time, bool) {
	if interval <= 0 {
		interval = 1
	}
	current = Day(current)

	switch kind {
	case Daily, Custom:
		return current.AddDate(0, 0, interval), true
	case Weekly:
		return current.AddDate(0, 0, 7*interval), true
	case Weekday:
		return addWeekdays(current, interval), true
	case Monthly:
		return current.AddDate(0, interval, 0), true
	case Yearly:
		return current.AddDate(interval, 0, 0), true
	default:
		return time.Time{}, false
	}
}

func addWeekdays(current time.Time, n int) time.Time {
	next := current
	for counted := 0; counted < n; {
		next = next.AddDate(0, 0, 1)
		if IsWeekday(next) {
			counted++
		}
	}
	return next
}

// IsWeekday reports whether t falls on Monday through Friday.
func IsWeekday(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}
