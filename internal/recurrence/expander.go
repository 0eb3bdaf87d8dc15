// Package recurrence expands weekly recurring-trip templates into dated
// pickup times.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

// MaxWeeks caps how far ahead a single template may generate trips.
const MaxWeeks = 52

// Template is the part of a recurring trip that determines its schedule.
type Template struct {
	DayOfWeek time.Weekday
	Hour      int
	Minute    int
	Weeks     int
}

var rruleDays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Expand returns the pickup times for t, one per week for t.Weeks weeks,
// starting from the first matching weekday on or after today in loc.
//
// Occurrences before now are dropped, including an occurrence later today
// whose time-of-day has already passed. The result therefore holds at most
// t.Weeks entries, each exactly seven calendar days after the previous one.
func Expand(t Template, now time.Time, loc *time.Location) ([]time.Time, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	now = now.In(loc)
	y, m, d := now.Date()
	dtstart := time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Count:     t.Weeks,
		Byweekday: []rrule.Weekday{rruleDays[t.DayOfWeek]},
		Dtstart:   dtstart,
	})
	if err != nil {
		return nil, fmt.Errorf("recurrence.Expand: %w", err)
	}

	all := rule.All()
	out := make([]time.Time, 0, len(all))
	for _, occ := range all {
		if occ.Before(now) {
			continue
		}
		out = append(out, occ)
	}
	return out, nil
}

func (t Template) validate() error {
	if t.DayOfWeek < time.Sunday || t.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day of week must be between 0 and 6", domain.ErrValidation)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("%w: time of day out of range", domain.ErrValidation)
	}
	if t.Weeks < 1 || t.Weeks > MaxWeeks {
		return fmt.Errorf("%w: duration must be between 1 and %d weeks", domain.ErrValidation, MaxWeeks)
	}
	return nil
}

var dayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseDay maps a day name ("Monday", "mon") or index ("0"–"6", Sunday = 0)
// to a time.Weekday.
func ParseDay(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(key); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("%w: day index %d out of range", domain.ErrValidation, n)
		}
		return time.Weekday(n), nil
	}
	if day, ok := dayNames[key]; ok {
		return day, nil
	}
	if len(key) == 3 {
		for name, day := range dayNames {
			if strings.HasPrefix(name, key) {
				return day, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unknown day %q", domain.ErrValidation, s)
}

// ParseTimeOfDay parses a 24-hour "HH:MM" string.
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("%w: time must be HH:MM", domain.ErrValidation)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// AtTimeOfDay returns t's calendar date in loc combined with hour:minute.
func AtTimeOfDay(t time.Time, hour, minute int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}
