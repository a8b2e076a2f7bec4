package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Weekday encodes a day of the week with Monday as 0 and Sunday as 6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// AllWeekdays lists every day in Monday-first order.
var AllWeekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayOf converts a time.Weekday (Sunday=0) to the Monday-first encoding.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

// Valid reports whether d is within 0..6.
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

// Schedule defaults.
const (
	DefaultStartHour       = 22
	DefaultStartMinute     = 0
	DefaultEndHour         = 0
	DefaultEndMinute       = 59
	DefaultIntervalSeconds = 30
)

// ScheduleConfig describes when collection is allowed and how often the
// location source is sampled. The window may wrap past midnight: a start
// later than the end means "from start, through midnight, until end".
type ScheduleConfig struct {
	ActiveDays      map[Weekday]bool
	StartHour       int
	StartMinute     int
	EndHour         int
	EndMinute       int
	IntervalSeconds int
}

// DefaultScheduleConfig returns every day active, 22:00 to 00:59, sampling every 30s.
func DefaultScheduleConfig() ScheduleConfig {
	days := make(map[Weekday]bool, len(AllWeekdays))
	for _, d := range AllWeekdays {
		days[d] = true
	}
	return ScheduleConfig{
		ActiveDays:      days,
		StartHour:       DefaultStartHour,
		StartMinute:     DefaultStartMinute,
		EndHour:         DefaultEndHour,
		EndMinute:       DefaultEndMinute,
		IntervalSeconds: DefaultIntervalSeconds,
	}
}

// Interval returns the sampling cadence as a duration.
func (c ScheduleConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// StartMinutes returns the window start as minutes after midnight.
func (c ScheduleConfig) StartMinutes() int {
	return c.StartHour*60 + c.StartMinute
}

// EndMinutes returns the window end as minutes after midnight.
func (c ScheduleConfig) EndMinutes() int {
	return c.EndHour*60 + c.EndMinute
}

// WrapsMidnight reports whether the window crosses midnight.
func (c ScheduleConfig) WrapsMidnight() bool {
	return c.StartMinutes() > c.EndMinutes()
}

// Days returns the active days sorted Monday first.
func (c ScheduleConfig) Days() []Weekday {
	days := make([]Weekday, 0, len(c.ActiveDays))
	for d, on := range c.ActiveDays {
		if on {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

// Validate checks hour, minute, day and interval ranges.
func (c ScheduleConfig) Validate() error {
	if c.StartHour < 0 || c.StartHour > 23 || c.EndHour < 0 || c.EndHour > 23 {
		return fmt.Errorf("%w: hour must be within 0..23", ErrConfig)
	}
	if c.StartMinute < 0 || c.StartMinute > 59 || c.EndMinute < 0 || c.EndMinute > 59 {
		return fmt.Errorf("%w: minute must be within 0..59", ErrConfig)
	}
	if c.IntervalSeconds < 1 {
		return fmt.Errorf("%w: interval must be at least one second", ErrConfig)
	}
	for d := range c.ActiveDays {
		if !d.Valid() {
			return fmt.Errorf("%w: weekday %d out of range", ErrConfig, d)
		}
	}
	return nil
}

// IsActiveAt reports whether collection is allowed at t, evaluated on t's
// own clock. The day must be active and the hour:minute must fall inside the
// window, both bounds inclusive. Seconds are ignored.
func (c ScheduleConfig) IsActiveAt(t time.Time) bool {
	if !c.ActiveDays[WeekdayOf(t.Weekday())] {
		return false
	}

	now := t.Hour()*60 + t.Minute()
	start, end := c.StartMinutes(), c.EndMinutes()

	if start <= end {
		return start <= now && now <= end
	}
	return now >= start || now <= end
}

// ParseClock parses "HH:MM" (24-hour) into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: clock %q is not HH:MM", ErrConfig, s)
	}
	hour, err = strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: clock %q has invalid hour", ErrConfig, s)
	}
	minute, err = strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: clock %q has invalid minute", ErrConfig, s)
	}
	return hour, minute, nil
}

// FormatClock renders hour and minute as "HH:MM".
func FormatClock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// ParseWeekdays parses a comma-separated list of Monday-first day indexes.
// An empty string yields an empty set, meaning collection is never active.
func ParseWeekdays(s string) (map[Weekday]bool, error) {
	days := make(map[Weekday]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || !Weekday(n).Valid() {
			return nil, fmt.Errorf("%w: weekday %q out of range 0..6", ErrConfig, part)
		}
		days[Weekday(n)] = true
	}
	return days, nil
}

// FormatWeekdays renders the active days as a sorted comma-separated list.
func FormatWeekdays(days map[Weekday]bool) string {
	cfg := ScheduleConfig{ActiveDays: days}
	parts := make([]string, 0, len(days))
	for _, d := range cfg.Days() {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}
