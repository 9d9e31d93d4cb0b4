package domain

import "time"

const (
	// DateLayout is the ISO calendar date used for task and note dates.
	DateLayout = "2006-01-02"
	// DateTimeLayout is the minute precision local timestamp used by appointments.
	DateTimeLayout = "2006-01-02T15:04"
	// TimestampLayout matches the millisecond UTC timestamps written to backups.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// Stamp normalizes t to UTC with millisecond precision so that it survives a
// JSON round trip unchanged.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// ParseDate parses an ISO calendar date.
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseDateTime parses an appointment timestamp.
func ParseDateTime(s string) (time.Time, bool) {
	t, err := time.Parse(DateTimeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DaysAgo returns the calendar date n days before now.
func DaysAgo(now time.Time, n int) string {
	return DateOf(now.AddDate(0, 0, -n))
}

// DateLabel renders a calendar date for display: "Today", "Yesterday" or
// day/month/year. Unparseable input is returned unchanged.
func DateLabel(date string, now time.Time) string {
	switch date {
	case DateOf(now):
		return "Today"
	case DaysAgo(now, 1):
		return "Yesterday"
	}
	t, ok := ParseDate(date)
	if !ok {
		return date
	}
	return t.Format("02/01/2006")
}

// LongDate renders t the way report headers show it.
func LongDate(t time.Time) string {
	return t.Format("Monday, 2 January 2006 15:04")
}

// FileStamp is the YYYYMMDD_HHMM suffix used in artifact names.
func FileStamp(t time.Time) string {
	return t.Format("20060102_1504")
}
