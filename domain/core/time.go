package core

import (
	"fmt"
	"time"
)

// Timestamp represents a point in time with timezone awareness
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// Before returns true if t is before u
func (t Timestamp) Before(u Timestamp) bool {
	return time.Time(t).Before(time.Time(u))
}

// After returns true if t is after u
func (t Timestamp) After(u Timestamp) bool {
	return time.Time(t).After(time.Time(u))
}

// JSON marshaling for Timestamp
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}

const dateLayout = "2006-01-02"

// Date is a day-granular acquisition date in UTC. Satellite composites are
// labelled by the mid point of their compositing period, so the time of day
// carries no information.
type Date time.Time

// NewDate creates a Date from calendar components
func NewDate(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf truncates a time.Time to its UTC calendar day
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// ParseDate parses a "YYYY-MM-DD" string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t), nil
}

// Time returns the underlying time.Time (midnight UTC)
func (d Date) Time() time.Time {
	return time.Time(d)
}

// String formats the date as "YYYY-MM-DD"
func (d Date) String() string {
	return time.Time(d).Format(dateLayout)
}

// IsZero checks if the date is zero
func (d Date) IsZero() bool {
	return time.Time(d).IsZero()
}

// Before returns true if d is before o
func (d Date) Before(o Date) bool {
	return time.Time(d).Before(time.Time(o))
}

// After returns true if d is after o
func (d Date) After(o Date) bool {
	return time.Time(d).After(time.Time(o))
}

// Equal returns true if d and o are the same calendar day
func (d Date) Equal(o Date) bool {
	return time.Time(d).Equal(time.Time(o))
}

// AddDays returns the date n days later (or earlier for negative n)
func (d Date) AddDays(n int) Date {
	return Date(time.Time(d).AddDate(0, 0, n))
}

// DaysSince returns the number of whole days from o to d
func (d Date) DaysSince(o Date) int {
	return int(time.Time(d).Sub(time.Time(o)).Hours() / 24)
}

// JSON marshaling for Date uses the "YYYY-MM-DD" form
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date json: %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MidDate returns the calendar day halfway between start and end, the label
// used for one compositing period of satellite imagery.
func MidDate(start, end Date) Date {
	return start.AddDays(end.DaysSince(start) / 2)
}
