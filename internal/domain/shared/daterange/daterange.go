package daterange

import (
	"errors"
	"fmt"
	"time"
)

// Layout is the canonical day-key layout.
const Layout = "2006-01-02"

var (
	ErrInvalidDay   = errors.New("daterange: day must be formatted as YYYY-MM-DD")
	ErrInvalidRange = errors.New("daterange: end must not be before start")
)

// DayKey identifies a calendar day without a time component. Lexical order
// equals chronological order.
type DayKey string

// ParseDay accepts only the canonical YYYY-MM-DD form.
func ParseDay(raw string) (DayKey, error) {
	t, err := time.Parse(Layout, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, raw)
	}
	if t.Format(Layout) != raw {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, raw)
	}
	return DayKey(raw), nil
}

// MustDay panics on malformed input; used by fixtures and tests.
func MustDay(raw string) DayKey {
	d, err := ParseDay(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) DayKey {
	return DayKey(t.UTC().Format(Layout))
}

// Time returns midnight UTC of the day.
func (d DayKey) Time() time.Time {
	t, err := time.Parse(Layout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d DayKey) AddDays(n int) DayKey {
	return DayOf(d.Time().AddDate(0, 0, n))
}

func (d DayKey) Before(other DayKey) bool { return d < other }

func (d DayKey) After(other DayKey) bool { return d > other }

func (d DayKey) String() string { return string(d) }

func (d DayKey) Valid() bool {
	_, err := ParseDay(string(d))
	return err == nil
}

// DateRange is an inclusive span of days. A renter holds the car on every
// day from Start up to but excluding End: the checkout day stays free.
type DateRange struct {
	Start DayKey `json:"start"`
	End   DayKey `json:"end"`
}

func New(start, end DayKey) (DateRange, error) {
	dr := DateRange{Start: start, End: end}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Parse builds a range from two raw day strings.
func Parse(start, end string) (DateRange, error) {
	s, err := ParseDay(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return DateRange{}, err
	}
	return New(s, e)
}

func (dr DateRange) Validate() error {
	if !dr.Start.Valid() || !dr.End.Valid() {
		return ErrInvalidDay
	}
	if dr.End.Before(dr.Start) {
		return ErrInvalidRange
	}
	return nil
}

// Days lists every day from Start to End inclusive.
func (dr DateRange) Days() []DayKey {
	return expand(dr.Start, dr.End, true)
}

// Nights lists the days the booking consumes: Start up to End exclusive.
func (dr DateRange) Nights() []DayKey {
	return expand(dr.Start, dr.End, false)
}

func (dr DateRange) NightCount() int {
	if dr.End.Before(dr.Start) || dr.End == dr.Start {
		return 0
	}
	return daysBetween(dr.Start.Time(), dr.End.Time())
}

// daysBetween counts calendar days between two UTC midnights. It works on
// Unix seconds because time.Duration saturates after about 292 years.
func daysBetween(s, e time.Time) int {
	return int((e.Unix() - s.Unix()) / 86400)
}

// Overlaps reports whether the consumed nights of both ranges intersect.
func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.Start.Before(other.End) && other.Start.Before(dr.End)
}

// ContainsNight reports whether d is one of the consumed nights.
func (dr DateRange) ContainsNight(d DayKey) bool {
	return !d.Before(dr.Start) && d.Before(dr.End)
}

func (dr DateRange) String() string {
	return fmt.Sprintf("%s..%s", dr.Start, dr.End)
}

func expand(start, end DayKey, inclusive bool) []DayKey {
	if end.Before(start) {
		return nil
	}
	s, e := start.Time(), end.Time()
	if s.IsZero() || e.IsZero() {
		return nil
	}
	out := make([]DayKey, 0, daysBetween(s, e)+1)
	for cur := s; cur.Before(e) || (inclusive && cur.Equal(e)); cur = cur.AddDate(0, 0, 1) {
		out = append(out, DayOf(cur))
	}
	return out
}
