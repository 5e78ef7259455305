package models

import "time"

// EndPeriod is the last month (and optionally day) a staff member works
type EndPeriod struct {
	Year  int  `json:"year" yaml:"year"`
	Month int  `json:"month" yaml:"month"`
	Day   *int `json:"day,omitempty" yaml:"day,omitempty"`
}

// LastDay returns the end period as a UTC calendar date. A missing day means
// the end of the month.
func (p EndPeriod) LastDay() time.Time {
	if p.Day != nil {
		return time.Date(p.Year, time.Month(p.Month), *p.Day, 0, 0, 0, 0, time.UTC)
	}
	day := 31
	if last := daysIn(p.Year, time.Month(p.Month)); last < day {
		day = last
	}
	return time.Date(p.Year, time.Month(p.Month), day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Staff represents a person on the roster
type Staff struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Status    string     `json:"status,omitempty" yaml:"status,omitempty"`
	EndPeriod *EndPeriod `json:"endPeriod,omitempty" yaml:"endPeriod,omitempty"`
}

// ScheduleEntry is one staff member's shift on one date of a schedule
type ScheduleEntry struct {
	StaffID   string    `json:"staffId" yaml:"staffId"`
	Date      string    `json:"date" yaml:"date"` // YYYY-MM-DD
	ShiftType ShiftType `json:"shiftType" yaml:"shiftType"`
}

// Weekday parses the entry date and returns its day of week
func (e ScheduleEntry) Weekday() (time.Weekday, error) {
	d, err := time.Parse(time.DateOnly, e.Date)
	if err != nil {
		return 0, err
	}
	return d.Weekday(), nil
}

// Schedule is a named set of shift assignments
type Schedule struct {
	ID      string          `json:"id" yaml:"id"`
	Entries []ScheduleEntry `json:"entries" yaml:"entries"`
}
