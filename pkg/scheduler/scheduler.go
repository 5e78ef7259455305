package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/arnavshah/limits-settings-go/pkg/models"
)

// ScheduleSource loads the assignments of a stored schedule
type ScheduleSource interface {
	Entries(ctx context.Context, scheduleID string) ([]models.ScheduleEntry, error)
}

// Checker validates daily limits against a stored schedule
type Checker struct {
	Schedules ScheduleSource
}

// NewChecker creates a new checker instance
func NewChecker(src ScheduleSource) *Checker {
	return &Checker{Schedules: src}
}

// Validate loads the schedule and returns every violation of proposed
func (c *Checker) Validate(ctx context.Context, scheduleID string, proposed []models.DailyLimit, roster []models.Staff) ([]string, error) {
	entries, err := c.Schedules.Entries(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("load schedule %s: %w", scheduleID, err)
	}
	return Violations(entries, proposed, roster), nil
}

// Counts checks if an entry is counted by a daily limit's shift type
func Counts(limit models.DailyConfig, entry models.ScheduleEntry) bool {
	if limit.ShiftType == models.ShiftAny {
		return entry.ShiftType != models.ShiftOff
	}
	return entry.ShiftType == limit.ShiftType
}

// Covers checks if a daily limit applies to a staff member on the entry's date
func Covers(limit models.DailyConfig, staff models.Staff, entry models.ScheduleEntry) bool {
	wd, err := entry.Weekday()
	if err != nil {
		return false
	}
	if !limit.DaysOfWeek.Contains(int(wd)) {
		return false
	}
	return limit.Targeting.Includes(staff)
}

// Violations counts, per limit and date, the covered entries of the limit's
// shift type and reports every date where the count exceeds maxCount
func Violations(entries []models.ScheduleEntry, proposed []models.DailyLimit, roster []models.Staff) []string {
	staffByID := make(map[string]models.Staff, len(roster))
	for _, s := range roster {
		staffByID[s.ID] = s
	}

	var out []string
	for _, limit := range proposed {
		cfg := limit.LimitConfig
		if cfg.NoTargets() {
			continue
		}

		byDate := make(map[string][]string)
		for _, e := range entries {
			staff, ok := staffByID[e.StaffID]
			if !ok {
				staff = models.Staff{ID: e.StaffID, Name: e.StaffID}
			}
			if Counts(cfg, e) && Covers(cfg, staff, e) {
				byDate[e.Date] = append(byDate[e.Date], staff.Name)
			}
		}

		dates := make([]string, 0, len(byDate))
		for d := range byDate {
			dates = append(dates, d)
		}
		sort.Strings(dates)

		for _, d := range dates {
			names := byDate[d]
			if len(names) <= cfg.MaxCount {
				continue
			}
			out = append(out, fmt.Sprintf("%s scheduled for %d %s shifts on %s but limit is %d",
				strings.Join(unique(names), ", "), len(names), shiftLabel(cfg.ShiftType), d, cfg.MaxCount))
		}
	}
	return out
}

func shiftLabel(s models.ShiftType) string {
	if s == models.ShiftAny {
		return "work"
	}
	return string(s)
}

func unique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
