package model

import (
	"fmt"
	"time"
)

const (
	minutesPerDay = 24 * 60

	// DateLayout is the wire and storage format of calendar days
	DateLayout = "2006-01-02"
)

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
// 24:00 is representable and only meaningful as the end of a window.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return NewTimeOfDay(h, m), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Valid reports whether t lies within [00:00, 24:00]
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= minutesPerDay
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// On returns the absolute instant of t on the given calendar day in loc
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// WeeklyRule is a recurring open window owned by one user.
type WeeklyRule struct {
	ID        int64     `json:"id,omitempty"`
	UserID    int64     `json:"user_id"`
	DayOfWeek int       `json:"day_of_week"` // 0 = Sunday, 6 = Saturday
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
}

// TimeRange is a half-open span of absolute instants.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// AvailabilityException replaces the weekly pattern of one user for one calendar day.
// An empty Slots list means the user is unavailable for the whole day.
type AvailabilityException struct {
	ID     int64       `json:"id,omitempty"`
	UserID int64       `json:"user_id"`
	Date   time.Time   `json:"date"`
	Slots  []TimeRange `json:"slots"`
}

// Availability is the full set of availability data owned by a user,
// replaced as a whole on every save.
type Availability struct {
	UserID      int64                   `json:"user_id"`
	WeeklyRules []WeeklyRule            `json:"weekly_rules"`
	Exceptions  []AvailabilityException `json:"exceptions"`
}

// DateKey identifies a calendar day by its own year, month and day
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf strips the clock from t, keeping t's own calendar day, as UTC midnight
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar day in DateLayout
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}
