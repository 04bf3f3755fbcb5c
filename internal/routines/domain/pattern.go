package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PatternUnit is the recurrence unit of a frequency pattern.
type PatternUnit string

const (
	UnitDay   PatternUnit = "D"
	UnitWeek  PatternUnit = "W"
	UnitMonth PatternUnit = "M"
	UnitYear  PatternUnit = "Y"
)

const dayMillis = 24 * 60 * 60 * 1000

// Pattern is a parsed recurrence rule of the form <multiplier><unit>[:<days>],
// e.g. "1D", "2W", "1W:1,3,5". Weekday indices run 0=Sunday through
// 6=Saturday and apply to the W unit only.
type Pattern struct {
	raw        string
	multiplier int
	unit       PatternUnit
	days       []time.Weekday
}

// ParsePattern parses a frequency string. Month and year units use fixed
// 30 and 365 day lengths; the cursor arithmetic depends on that.
func ParsePattern(s string) (Pattern, error) {
	body, daysPart, hasDays := strings.Cut(s, ":")

	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	if i == 0 || i != len(body)-1 {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	}
	multiplier, err := strconv.Atoi(body[:i])
	if err != nil || multiplier <= 0 {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, s)
	}

	unit := PatternUnit(body[i:])
	switch unit {
	case UnitDay, UnitWeek, UnitMonth, UnitYear:
	default:
		return Pattern{}, fmt.Errorf("%w: unknown unit in %q", ErrInvalidPattern, s)
	}

	var days []time.Weekday
	if hasDays {
		if unit != UnitWeek {
			return Pattern{}, fmt.Errorf("%w: day list requires W unit in %q", ErrInvalidPattern, s)
		}
		// A trailing colon with no days means plain weekly.
		if daysPart = strings.TrimSpace(daysPart); daysPart != "" {
			for _, part := range strings.Split(daysPart, ",") {
				d, err := strconv.Atoi(strings.TrimSpace(part))
				if err != nil || d < 0 || d > 6 {
					return Pattern{}, fmt.Errorf("%w: weekday %q in %q", ErrInvalidPattern, part, s)
				}
				days = append(days, time.Weekday(d))
			}
		}
	}

	return Pattern{raw: s, multiplier: multiplier, unit: unit, days: days}, nil
}

// MustParsePattern is for tests and static patterns.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PatternOrDaily parses a stored frequency string, falling back to a daily
// pattern when the stored value is malformed. Evaluation never fails on bad
// data that made it past creation-time validation.
func PatternOrDaily(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		return Pattern{raw: s, multiplier: 1, unit: UnitDay}
	}
	return p
}

// String returns the original pattern text.
func (p Pattern) String() string { return p.raw }

// Multiplier returns the recurrence multiplier.
func (p Pattern) Multiplier() int { return p.multiplier }

// Unit returns the recurrence unit.
func (p Pattern) Unit() PatternUnit { return p.unit }

// Days returns the weekday restriction, nil when unrestricted.
func (p Pattern) Days() []time.Weekday { return p.days }

// Next computes the occurrence after current, normalized to midnight UTC.
func (p Pattern) Next(current time.Time) time.Time {
	var next time.Time
	switch p.unit {
	case UnitWeek:
		if len(p.days) > 0 {
			// Step one day past current, scan to the next allowed weekday,
			// then skip whole weeks for multipliers above one.
			next = current.Add(24 * time.Hour)
			for !p.weekdayAllowed(next.UTC().Weekday()) {
				next = next.Add(24 * time.Hour)
			}
			next = next.Add(time.Duration(p.multiplier-1) * 7 * 24 * time.Hour)
		} else {
			next = current.Add(time.Duration(p.multiplier) * 7 * 24 * time.Hour)
		}
	case UnitMonth:
		next = current.Add(time.Duration(p.multiplier) * 30 * 24 * time.Hour)
	case UnitYear:
		next = current.Add(time.Duration(p.multiplier) * 365 * 24 * time.Hour)
	default:
		next = current.Add(time.Duration(p.multiplier) * 24 * time.Hour)
	}
	return DayStart(next)
}

// IsValidOccurrence reports whether t lands on an allowed weekday. Patterns
// without a day restriction accept every timestamp.
func (p Pattern) IsValidOccurrence(t time.Time) bool {
	if p.unit != UnitWeek || len(p.days) == 0 {
		return true
	}
	return p.weekdayAllowed(t.UTC().Weekday())
}

func (p Pattern) weekdayAllowed(w time.Weekday) bool {
	for _, d := range p.days {
		if d == w {
			return true
		}
	}
	return false
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ApplyTimeOfDay sets the time-of-day of t from a milliseconds-since-midnight
// offset, keeping only the whole-minute component.
func ApplyTimeOfDay(t time.Time, offsetMillis int64) time.Time {
	minutes := (offsetMillis % dayMillis) / 60000
	return DayStart(t).Add(time.Duration(minutes) * time.Minute)
}
