package market

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock instant within a day, in seconds since midnight.
// Nepal has no daylight saving, so plain second arithmetic is safe.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m, sec int
	switch strings.Count(s, ":") {
	case 1:
		if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
			return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
	case 2:
		if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
			return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
	default:
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*3600 + m*60 + sec), nil
}

// TimeOfDayFrom extracts the wall-clock component of t.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)%3600/60, int(t)%60)
}

// Add returns the time of day shifted by d, capped at end of day.
func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	shifted := int(t) + int(d/time.Second)
	if shifted > 24*3600-1 {
		shifted = 24*3600 - 1
	}
	return TimeOfDay(shifted)
}

// Truncate rounds the time of day down to a multiple of interval.
func (t TimeOfDay) Truncate(interval time.Duration) TimeOfDay {
	step := int(interval / time.Second)
	if step <= 0 {
		return t
	}
	return TimeOfDay(int(t) / step * step)
}

// Calendar describes when the exchange trades. The trading weekday set is
// configurable because NEPSE moved from Mon-Fri to Sun-Thu between revisions
// of its published schedule; the default here is Sun-Thu.
type Calendar struct {
	Location       *time.Location
	TradingDays    map[time.Weekday]bool
	Open           TimeOfDay
	Close          TimeOfDay
	ClosingWindow  time.Duration
	BucketInterval time.Duration

	// Canonical bucket times for non-live observations.
	ClosingBucket    TimeOfDay
	HistoricalBucket TimeOfDay
}

// DefaultCalendar returns the NEPSE trading calendar: Sunday-Thursday,
// 11:00-15:00 Asia/Kathmandu, with a two hour closing window.
func DefaultCalendar() Calendar {
	loc, err := time.LoadLocation("Asia/Kathmandu")
	if err != nil {
		loc = time.FixedZone("NPT", 5*3600+45*60)
	}
	return Calendar{
		Location: loc,
		TradingDays: map[time.Weekday]bool{
			time.Sunday:    true,
			time.Monday:    true,
			time.Tuesday:   true,
			time.Wednesday: true,
			time.Thursday:  true,
		},
		Open:             TimeOfDay(11 * 3600),
		Close:            TimeOfDay(15 * 3600),
		ClosingWindow:    2 * time.Hour,
		BucketInterval:   5 * time.Minute,
		ClosingBucket:    TimeOfDay(15*3600 + 30*60),
		HistoricalBucket: TimeOfDay(16 * 3600),
	}
}

// NewCalendar builds a calendar from configuration values. Weekday names are
// case-insensitive English names ("sunday", ...).
func NewCalendar(timezone string, tradingDays []string, open, close string, closingWindow, bucketInterval time.Duration) (Calendar, error) {
	cal := DefaultCalendar()

	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return Calendar{}, fmt.Errorf("invalid market timezone %q: %w", timezone, err)
		}
		cal.Location = loc
	}

	if len(tradingDays) > 0 {
		days := make(map[time.Weekday]bool, len(tradingDays))
		for _, name := range tradingDays {
			day, err := parseWeekday(name)
			if err != nil {
				return Calendar{}, err
			}
			days[day] = true
		}
		cal.TradingDays = days
	}

	if open != "" {
		t, err := ParseTimeOfDay(open)
		if err != nil {
			return Calendar{}, err
		}
		cal.Open = t
	}
	if close != "" {
		t, err := ParseTimeOfDay(close)
		if err != nil {
			return Calendar{}, err
		}
		cal.Close = t
	}
	if cal.Close <= cal.Open {
		return Calendar{}, fmt.Errorf("market close %s must be after open %s", cal.Close, cal.Open)
	}
	if closingWindow > 0 {
		cal.ClosingWindow = closingWindow
	}
	if bucketInterval > 0 {
		cal.BucketInterval = bucketInterval
	}
	cal.ClosingBucket = cal.Close.Add(30 * time.Minute)
	cal.HistoricalBucket = cal.Close.Add(time.Hour)
	return cal, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sunday":
		return time.Sunday, nil
	case "monday":
		return time.Monday, nil
	case "tuesday":
		return time.Tuesday, nil
	case "wednesday":
		return time.Wednesday, nil
	case "thursday":
		return time.Thursday, nil
	case "friday":
		return time.Friday, nil
	case "saturday":
		return time.Saturday, nil
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}
