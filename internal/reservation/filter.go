package reservation

import (
	"sort"
	"strings"
	"time"
)

// DateRange is a closed day interval; both ends are inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Filter narrows the reservation list. All set fields must match. When both
// Date and Range are set, Date wins and Range is ignored.
type Filter struct {
	Status string
	Date   *time.Time
	Range  *DateRange
	Search string
}

// NormalizeStatus maps the tab labels (plural) and an empty value onto the
// canonical filter statuses.
func NormalizeStatus(s string) string {
	switch strings.TrimSpace(s) {
	case "", "all", "tutte":
		return "all"
	case "Confermate":
		return StatoConfermata
	case "Cancellate":
		return StatoCancellata
	default:
		return strings.TrimSpace(s)
	}
}

// QuickFilter builds the date part of a filter from a preset name.
func QuickFilter(name string, now time.Time) (Filter, bool) {
	today := StartOfDay(now)

	switch name {
	case "today":
		return Filter{Status: "all", Date: &today}, true
	case "tomorrow":
		tomorrow := today.AddDate(0, 0, 1)
		return Filter{Status: "all", Date: &tomorrow}, true
	case "thisWeek":
		start := StartOfWeek(now)
		end := EndOfDay(start.AddDate(0, 0, 6))
		return Filter{Status: "all", Range: &DateRange{Start: start, End: end}}, true
	case "next7Days":
		end := EndOfDay(today.AddDate(0, 0, 6))
		return Filter{Status: "all", Range: &DateRange{Start: today, End: end}}, true
	}
	return Filter{}, false
}

// Result is a filtered, sorted view plus the counts the "showing N of M"
// label needs.
type Result struct {
	Items []Reservation
	Shown int
	Total int
}

// Apply filters and sorts the list. A nil or empty list yields an empty
// result, never an error. Records whose date cannot be parsed are dropped.
func Apply(list []Reservation, f Filter) Result {
	total := len(list)
	if total == 0 {
		return Result{Items: []Reservation{}}
	}

	type dated struct {
		res  Reservation
		when time.Time
	}

	filtered := make([]dated, 0, len(list))
	status := NormalizeStatus(f.Status)
	// Anything that is not "all" or Cancellata selects the confirmed side,
	// mirroring how records with unknown statuses are treated.
	wantCancelled := strings.EqualFold(status, StatoCancellata)
	search := strings.ToLower(strings.TrimSpace(f.Search))

	for _, r := range list {
		when, ok := ParseDate(r.Data)
		if !ok {
			continue
		}

		if status != "all" && r.Cancelled() != wantCancelled {
			continue
		}

		if f.Date != nil {
			if !SameDay(when, *f.Date) {
				continue
			}
		} else if f.Range != nil {
			day := StartOfDay(when)
			if day.Before(f.Range.Start) || day.After(f.Range.End) {
				continue
			}
		}

		if search != "" {
			fullName := strings.ToLower(r.FullName())
			phone := strings.ToLower(string(r.Telefono))
			if !strings.Contains(fullName, search) && !strings.Contains(phone, search) {
				continue
			}
		}

		filtered = append(filtered, dated{res: r, when: when})
	}

	// Most recent date first; within a day, earlier time first.
	sort.SliceStable(filtered, func(i, j int) bool {
		if !filtered[i].when.Equal(filtered[j].when) {
			return filtered[i].when.After(filtered[j].when)
		}
		return MinutesOfDay(filtered[i].res.Orario) < MinutesOfDay(filtered[j].res.Orario)
	})

	items := make([]Reservation, len(filtered))
	for i, d := range filtered {
		items[i] = d.res
	}

	return Result{Items: items, Shown: len(items), Total: total}
}
