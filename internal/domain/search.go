package domain

import (
	"sort"
	"strings"
	"time"
)

// SearchFilter narrows the set of bookable trips.
// Empty strings and nil dates match everything. Date bounds are inclusive
// and compared at calendar-date granularity.
type SearchFilter struct {
	Origin      string
	Destination string
	DateFrom    *time.Time
	DateTo      *time.Time
}

// Matches reports whether t satisfies the origin, destination and date-range
// parts of the filter. Eligibility (status and today) is checked by the caller.
func (f SearchFilter) Matches(t Trip) bool {
	if !containsFold(t.Origin, f.Origin) || !containsFold(t.Destination, f.Destination) {
		return false
	}
	d := DateOf(t.DepartureDate)
	if f.DateFrom != nil && d.Before(DateOf(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && d.After(DateOf(*f.DateTo)) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}

// SortByDeparture orders trips by departure date ascending, then departure
// time label, then ID, giving search results a stable order.
func SortByDeparture(trips []Trip) {
	sort.SliceStable(trips, func(i, j int) bool {
		return departsBefore(trips[i], trips[j])
	})
}

func departsBefore(a, b Trip) bool {
	da, db := DateOf(a.DepartureDate), DateOf(b.DepartureDate)
	if !da.Equal(db) {
		return da.Before(db)
	}
	if a.DepartureTime != b.DepartureTime {
		return a.DepartureTime < b.DepartureTime
	}
	return a.ID.String() < b.ID.String()
}
