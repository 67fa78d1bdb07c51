package recurrence

import (
	"fmt"
	"strings"
)

// Rule is the recurrence triple stored on a task.
type Rule struct {
	Kind     Kind
	Interval int
	// EndDate is the last date an occurrence may fall on; empty means no end.
	EndDate string
}

// ParseRule builds a Rule from stored task columns. ok is false when the
// recurrence type is empty or unknown.
func ParseRule(recurrenceType string, interval *int, endDate *string) (rule Rule, ok bool, err error) {
	kind, ok := ParseKind(recurrenceType)
	if !ok {
		return Rule{}, false, nil
	}

	rule = Rule{Kind: kind, Interval: 1}
	if interval != nil && *interval > 0 {
		rule.Interval = *interval
	}

	if endDate != nil && strings.TrimSpace(*endDate) != "" {
		end, err := ParseDate(*endDate)
		if err != nil {
			return Rule{}, true, fmt.Errorf("recurrence end date: %w", err)
		}
		rule.EndDate = FormatDate(end)
	}

	return rule, true, nil
}

// Next computes the occurrence after date.
func (r Rule) Next(date string) (string, error) {
	current, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	next, ok := NextDate(current, r.Kind, r.Interval)
	if !ok {
		return "", fmt.Errorf("unsupported recurrence kind %s", r.Kind)
	}
	return FormatDate(next), nil
}

// Ended reports whether next lies past the end date. The bound is inclusive,
// and zero-padded ISO dates compare correctly as strings.
func (r Rule) Ended(next string) bool {
	return r.EndDate != "" && next > r.EndDate
}
