package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

// DateLayout is the wire and storage format for calendar dates
const DateLayout = "2006-01-02"

// Date is a calendar day with no time-of-day or time zone component.
// "2025-03-10" denotes the same day regardless of where it is read.
type Date civil.Date

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date(d), nil
}

// MustParseDate is ParseDate for literals in tests and seeds
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's own location
func DateOf(t time.Time) Date {
	return Date(civil.DateOf(t))
}

// Today returns the current calendar day in loc
func Today(now time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

func (d Date) toCivil() civil.Date { return civil.Date(d) }

func (d Date) String() string { return d.toCivil().String() }

// IsZero reports whether d is the zero value
func (d Date) IsZero() bool { return d == Date{} }

// IsValid reports whether d is a real calendar day
func (d Date) IsValid() bool { return d.toCivil().IsValid() }

func (d Date) Before(other Date) bool { return d.toCivil().Before(other.toCivil()) }

func (d Date) After(other Date) bool { return d.toCivil().After(other.toCivil()) }

func (d Date) Equal(other Date) bool { return d == other }

// AddDays returns the date n days after d (n may be negative)
func (d Date) AddDays(n int) Date { return Date(d.toCivil().AddDays(n)) }

// DaysSince returns the signed number of days from other to d
func (d Date) DaysSince(other Date) int { return d.toCivil().DaysSince(other.toCivil()) }

// MarshalText implements encoding.TextMarshaler
func (d Date) MarshalText() ([]byte, error) {
	return d.toCivil().MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(data []byte) error {
	parsed, err := ParseDate(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as text so the driver never applies a zone offset
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan reads DATE columns as returned by lib/pq (time.Time) or as text
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		// lib/pq returns DATE as midnight in UTC; take the wall date as-is
		*d = Date{Year: v.Year(), Month: v.Month(), Day: v.Day()}
		return nil
	case []byte:
		return d.UnmarshalText(v)
	case string:
		return d.UnmarshalText([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
}

// DateRange is an inclusive span of calendar days
type DateRange struct {
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

// NewDateRange builds a range and checks Start <= End
func NewDateRange(start, end Date) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate checks that both ends are set and ordered
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("start and end dates are required")
	}
	if !r.Start.IsValid() || !r.End.IsValid() {
		return fmt.Errorf("invalid calendar date")
	}
	if r.End.Before(r.Start) {
		return fmt.Errorf("end date %s is before start date %s", r.End, r.Start)
	}
	return nil
}

// Overlaps reports whether [a,b] and [c,d] share a day: a <= d AND b >= c
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.Start.After(other.End) && !r.End.Before(other.Start)
}

// Contains reports whether day falls inside the range
func (r DateRange) Contains(day Date) bool {
	return !day.Before(r.Start) && !day.After(r.End)
}

// Days is the inclusive number of days in the range
func (r DateRange) Days() int {
	return r.End.DaysSince(r.Start) + 1
}

// Each calls fn for every day of the range in order
func (r DateRange) Each(fn func(day Date)) {
	for day := r.Start; !day.After(r.End); day = day.AddDays(1) {
		fn(day)
	}
}

func (r DateRange) String() string {
	if r.Start == r.End {
		return r.Start.String()
	}
	return r.Start.String() + ".." + r.End.String()
}
