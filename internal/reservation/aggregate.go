package reservation

import (
	"sort"
	"strconv"
	"time"
)

// The chart series are dense on purpose: a day with no reservations is 0,
// never absent, so they plot against a contiguous axis.

var weekdayChart = [7]string{"Lun", "Mar", "Mer", "Gio", "Ven", "Sab", "Dom"}

// WeekLabels returns the seven axis labels for the week containing now,
// Monday first, e.g. "Lun 25".
func WeekLabels(now time.Time) []string {
	monday := StartOfWeek(now)
	labels := make([]string, 7)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		labels[i] = weekdayChart[i] + " " + strconv.Itoa(day.Day())
	}
	return labels
}

// WeeklyTrend counts confirmed reservations per day of the week containing
// now, Monday through Sunday. Always exactly 7 buckets.
func WeeklyTrend(list []Reservation, now time.Time) []int {
	monday := StartOfWeek(now)
	counts := make([]int, 7)

	for _, r := range list {
		if !r.Confirmed() {
			continue
		}
		when, ok := ParseDate(r.Data)
		if !ok {
			continue
		}
		for i := 0; i < 7; i++ {
			if SameDay(when, monday.AddDate(0, 0, i)) {
				counts[i]++
				break
			}
		}
	}
	return counts
}

// MonthlySeries is one month's per-day counts, zero-padded on the right to
// the shared label length.
type MonthlySeries struct {
	Label string `json:"label"`
	Data  []int  `json:"data"`
}

// MonthlyComparison holds the current and previous month side by side.
// Both series have equal length: the longer of the two months.
type MonthlyComparison struct {
	Labels   []string      `json:"labels"`
	Current  MonthlySeries `json:"current"`
	Previous MonthlySeries `json:"previous"`
}

// CompareMonths buckets confirmed reservations by day of month for the
// month containing now and the month before it.
func CompareMonths(list []Reservation, now time.Time) MonthlyComparison {
	curYear, curMonth := now.Year(), now.Month()

	prevYear, prevMonth := curYear, curMonth-1
	if curMonth == time.January {
		prevYear, prevMonth = curYear-1, time.December
	}

	daysCur := DaysInMonth(curYear, curMonth)
	daysPrev := DaysInMonth(prevYear, prevMonth)
	maxDays := daysCur
	if daysPrev > maxDays {
		maxDays = daysPrev
	}

	current := make([]int, maxDays)
	previous := make([]int, maxDays)

	for _, r := range list {
		if !r.Confirmed() {
			continue
		}
		when, ok := ParseDate(r.Data)
		if !ok {
			continue
		}
		switch {
		case when.Year() == curYear && when.Month() == curMonth:
			if idx := when.Day() - 1; idx >= 0 && idx < daysCur {
				current[idx]++
			}
		case when.Year() == prevYear && when.Month() == prevMonth:
			if idx := when.Day() - 1; idx >= 0 && idx < daysPrev {
				previous[idx]++
			}
		}
	}

	labels := make([]string, maxDays)
	for i := range labels {
		labels[i] = strconv.Itoa(i + 1)
	}

	return MonthlyComparison{
		Labels:   labels,
		Current:  MonthlySeries{Label: MonthName(curMonth), Data: current},
		Previous: MonthlySeries{Label: MonthName(prevMonth), Data: previous},
	}
}

// TodayCount is the KPI card value: confirmed reservations falling on now's
// calendar day.
func TodayCount(list []Reservation, now time.Time) int {
	count := 0
	for _, r := range list {
		if !r.Confirmed() {
			continue
		}
		if when, ok := ParseDate(r.Data); ok && SameDay(when, now) {
			count++
		}
	}
	return count
}

// TotalCovers sums party sizes across all confirmed reservations.
func TotalCovers(list []Reservation) int {
	covers := 0
	for _, r := range list {
		if r.Confirmed() {
			covers += int(r.Persone)
		}
	}
	return covers
}

// CustomerStat is an aggregated view of one customer, keyed by phone.
type CustomerStat struct {
	Nome         string `json:"nome"`
	Cognome      string `json:"cognome"`
	Telefono     string `json:"telefono"`
	Email        string `json:"email"`
	Visite       int    `json:"visite"`
	UltimaVisita string `json:"ultimaVisita"`
}

// CustomerStats folds the reservation list into per-customer visit counts
// with the most recent visit date, most frequent customers first.
func CustomerStats(list []Reservation) []CustomerStat {
	type entry struct {
		stat CustomerStat
		last time.Time
	}
	byPhone := make(map[string]*entry)
	order := make([]string, 0)

	for _, r := range list {
		phone := string(r.Telefono)
		when, ok := ParseDate(r.Data)
		if !ok {
			when = time.Time{}
		}

		e, seen := byPhone[phone]
		if !seen {
			e = &entry{
				stat: CustomerStat{
					Nome:     r.Nome,
					Cognome:  r.Cognome,
					Telefono: phone,
					Email:    r.Email,
				},
				last: when,
			}
			byPhone[phone] = e
			order = append(order, phone)
		}
		e.stat.Visite++
		if when.After(e.last) {
			e.last = when
		}
	}

	stats := make([]CustomerStat, 0, len(order))
	for _, phone := range order {
		e := byPhone[phone]
		if !e.last.IsZero() {
			e.stat.UltimaVisita = FormatDisplay(e.last)
		}
		stats = append(stats, e.stat)
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Visite > stats[j].Visite
	})
	return stats
}
