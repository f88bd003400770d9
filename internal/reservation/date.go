package reservation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Upstream sends reservation dates in three encodings depending on which
// surface wrote them: a full ISO timestamp, DD/MM/YYYY, or YYYY-MM-DD.
// The two date-only forms are pinned to midday local time so that timezone
// offsets can never shift them across a day boundary.

var (
	isoDateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockRe    = regexp.MustCompile(`^\d{2}:\d{2}$`)
	whitespace = regexp.MustCompile(`\s+`)
	slugChars  = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

var genericLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
	time.RFC1123,
}

// ParseDate resolves a textual reservation date to a calendar value.
// An absent value means "now". The boolean is false when the input is
// unparseable; callers must check it before using the time.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Now(), true
	}

	if strings.Contains(s, "T") {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.Local(), true
			}
		}
		return time.Time{}, false
	}

	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		if len(parts) == 3 {
			day, errD := strconv.Atoi(strings.TrimSpace(parts[0]))
			month, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
			year, errY := strconv.Atoi(strings.TrimSpace(parts[2]))
			if errD != nil || errM != nil || errY != nil {
				return time.Time{}, false
			}
			return time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.Local), true
		}
		return time.Time{}, false
	}

	if isoDateRe.MatchString(s) {
		year, _ := strconv.Atoi(s[0:4])
		month, _ := strconv.Atoi(s[5:7])
		day, _ := strconv.Atoi(s[8:10])
		return time.Date(year, time.Month(month), day, 12, 0, 0, 0, time.Local), true
	}

	for _, layout := range genericLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Local(), true
		}
	}
	return time.Time{}, false
}

// FormatDisplay renders a date as DD/MM/YYYY.
func FormatDisplay(t time.Time) string {
	return t.Format("02/01/2006")
}

var weekdayShort = [7]string{"dom", "lun", "mar", "mer", "gio", "ven", "sab"}

// FormatShort renders a date the way the cards show it, e.g. "ven 13/09".
func FormatShort(t time.Time) string {
	return weekdayShort[int(t.Weekday())] + " " + t.Format("02/01")
}

// FormatTime normalizes a time-of-day for display. HH:MM passes through,
// ISO timestamps have their local clock time extracted, anything else is
// returned as-is.
func FormatTime(raw string) string {
	if raw == "" {
		return ""
	}
	if clockRe.MatchString(raw) {
		return raw
	}
	if strings.Contains(raw, "T") {
		if t, ok := ParseDate(raw); ok {
			return t.Format("15:04")
		}
	}
	return raw
}

// SameDay reports whether two times fall on the same calendar day,
// ignoring time-of-day.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// StartOfDay returns midnight local time of t's day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day at second
// granularity, used for inclusive range ends.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// StartOfWeek returns Monday 00:00 of the week containing t. Sunday counts
// as the last day of the week, not the first.
func StartOfWeek(t time.Time) time.Time {
	daysFromMonday := int(t.Weekday()) - 1
	if t.Weekday() == time.Sunday {
		daysFromMonday = 6
	}
	return StartOfDay(t.AddDate(0, 0, -daysFromMonday))
}

// MinutesOfDay converts an HH:MM string to minutes since midnight.
// Malformed input counts as 00:00.
func MinutesOfDay(orario string) int {
	parts := strings.SplitN(strings.TrimSpace(orario), ":", 2)
	if len(parts) != 2 {
		return 0
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil {
		return 0
	}
	return h*60 + m
}

var monthNames = [12]string{
	"Gennaio", "Febbraio", "Marzo", "Aprile", "Maggio", "Giugno",
	"Luglio", "Agosto", "Settembre", "Ottobre", "Novembre", "Dicembre",
}

// MonthName returns the Italian name of a month.
func MonthName(m time.Month) string {
	return monthNames[int(m)-1]
}

// DaysInMonth returns the day count of the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 12, 0, 0, 0, time.Local).Day()
}

// Slug builds the legacy fallback id for records the upstream sends without
// one: name, phone and date concatenated, whitespace removed, lowercased.
// Identical tuples collide; new records get real UUIDs instead.
func Slug(nome, telefono, data string) string {
	base := fmt.Sprintf("%s-%s-%s", nome, telefono, data)
	base = whitespace.ReplaceAllString(base, "")
	base = slugChars.ReplaceAllString(base, "")
	return strings.ToLower(base)
}
