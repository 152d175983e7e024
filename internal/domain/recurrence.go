package domain

import "time"

// RecurrencePattern is the cadence rule governing a schedule's next execution
type RecurrencePattern string

const (
	PatternDaily     RecurrencePattern = "DAILY"
	PatternWeekly    RecurrencePattern = "WEEKLY"
	PatternBiWeekly  RecurrencePattern = "BI_WEEKLY"
	PatternMonthly   RecurrencePattern = "MONTHLY"
	PatternQuarterly RecurrencePattern = "QUARTERLY"
	PatternYearly    RecurrencePattern = "YEARLY"
)

func (p RecurrencePattern) Valid() bool {
	switch p {
	case PatternDaily, PatternWeekly, PatternBiWeekly, PatternMonthly, PatternQuarterly, PatternYearly:
		return true
	}
	return false
}

// NextDate computes the calendar date following base for the given pattern.
// It always produces a date; deciding whether the schedule should still fire
// (end date, occurrence cap) belongs to the schedule, not the calculator.
//
// For MONTHLY with a dayOfMonth anchor the result is that day in the month
// after base, clamped to the month's last day (day 31 in February lands on
// Feb 28/29). dayOfMonth == 0 means no anchor: add one calendar month.
func NextDate(pattern RecurrencePattern, base time.Time, dayOfMonth int) time.Time {
	base = truncateToDay(base.UTC())

	switch pattern {
	case PatternDaily:
		return base.AddDate(0, 0, 1)
	case PatternWeekly:
		return base.AddDate(0, 0, 7)
	case PatternBiWeekly:
		return base.AddDate(0, 0, 14)
	case PatternMonthly:
		return nextMonthly(base, dayOfMonth)
	case PatternQuarterly:
		return addMonthsClamped(base, 3)
	case PatternYearly:
		return addMonthsClamped(base, 12)
	}
	return base
}

func nextMonthly(base time.Time, dayOfMonth int) time.Time {
	if dayOfMonth == 0 {
		return addMonthsClamped(base, 1)
	}

	firstOfNext := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	day := min(dayOfMonth, daysInMonth(firstOfNext.Year(), firstOfNext.Month()))
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), day, 0, 0, 0, 0, time.UTC)
}

// addMonthsClamped avoids time.AddDate's month overflow (Jan 31 + 1 month
// must be Feb 28/29, not Mar 2/3).
func addMonthsClamped(base time.Time, months int) time.Time {
	firstOfTarget := time.Date(base.Year(), base.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := min(base.Day(), daysInMonth(firstOfTarget.Year(), firstOfTarget.Month()))
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
