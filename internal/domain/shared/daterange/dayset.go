package daterange

import "sort"

// DaySet is an unordered set of booked days.
type DaySet map[DayKey]struct{}

func NewDaySet(days ...DayKey) DaySet {
	s := make(DaySet, len(days))
	for _, d := range days {
		s[d] = struct{}{}
	}
	return s
}

func (s DaySet) Has(d DayKey) bool {
	_, ok := s[d]
	return ok
}

func (s DaySet) Add(days ...DayKey) {
	for _, d := range days {
		s[d] = struct{}{}
	}
}

func (s DaySet) Len() int { return len(s) }

// Union returns a new set holding the days of both sets.
func (s DaySet) Union(days ...DayKey) DaySet {
	out := s.Clone()
	out.Add(days...)
	return out
}

func (s DaySet) Clone() DaySet {
	out := make(DaySet, len(s))
	for d := range s {
		out[d] = struct{}{}
	}
	return out
}

// Sorted returns the days in chronological order.
func (s DaySet) Sorted() []DayKey {
	out := make([]DayKey, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings is Sorted rendered as plain strings for persistence.
func (s DaySet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, d := range sorted {
		out[i] = string(d)
	}
	return out
}

// FromStrings rebuilds a set from persisted values, skipping malformed entries.
func FromStrings(raw []string) DaySet {
	s := make(DaySet, len(raw))
	for _, r := range raw {
		if d, err := ParseDay(r); err == nil {
			s[d] = struct{}{}
		}
	}
	return s
}
