package scope

import (
	"testing"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/stretchr/testify/assert"
)

func day(d int) *int { return &d }

var roster = []models.Staff{
	{ID: "s1", Name: "Jane Doe", Status: "full_time"},
	{ID: "s2", Name: "John Roe", Status: "part_time", EndPeriod: &models.EndPeriod{Year: 2023, Month: 1, Day: day(1)}},
	{ID: "s3", Name: "Mia Poe", Status: "full_time", EndPeriod: &models.EndPeriod{Year: 2024, Month: 6}},
	{ID: "s4", Name: "Ola Noe", Status: ""},
}

func TestActiveStaff(t *testing.T) {
	asOf := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

	active := ActiveStaff(roster, asOf)
	var ids []string
	for _, s := range active {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"s1", "s3", "s4"}, ids)
}

func TestIsActiveComparesCalendarDate(t *testing.T) {
	s := models.Staff{ID: "x", EndPeriod: &models.EndPeriod{Year: 2024, Month: 6, Day: day(3)}}

	assert.True(t, IsActive(s, time.Date(2024, 6, 3, 23, 59, 0, 0, time.UTC)), "last day is still active")
	assert.False(t, IsActive(s, time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)))

	monthEnd := models.Staff{ID: "y", EndPeriod: &models.EndPeriod{Year: 2024, Month: 6}}
	assert.True(t, IsActive(monthEnd, time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)))
	assert.False(t, IsActive(monthEnd, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestIsActiveMonthWithoutDayEndsOnLastDay(t *testing.T) {
	for _, tc := range []struct {
		name   string
		end    models.EndPeriod
		last   time.Time
		expiry time.Time
	}{
		{"february", models.EndPeriod{Year: 2023, Month: 2},
			time.Date(2023, 2, 28, 23, 0, 0, 0, time.UTC), time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"leap february", models.EndPeriod{Year: 2024, Month: 2},
			time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"thirty days", models.EndPeriod{Year: 2024, Month: 4},
			time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := models.Staff{ID: "s9", Name: "Ada", EndPeriod: &tc.end}
			assert.True(t, IsActive(s, tc.last))
			assert.False(t, IsActive(s, tc.expiry))
		})
	}
}

func TestTargetOptions(t *testing.T) {
	asOf := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

	statuses := TargetOptions(models.ScopeStaffStatus, roster, asOf)
	assert.Equal(t, []Option{{ID: "full_time", Label: "full_time"}}, statuses, "inactive and empty statuses are dropped")

	people := TargetOptions(models.ScopeIndividual, roster, asOf)
	assert.Equal(t, []Option{
		{ID: "s1", Label: "Jane Doe"},
		{ID: "s3", Label: "Mia Poe"},
		{ID: "s4", Label: "Ola Noe"},
	}, people)

	assert.Empty(t, TargetOptions(models.ScopeAll, roster, asOf))
}

func TestDisplayText(t *testing.T) {
	assert.Equal(t, "Jane Doe, John Roe", DisplayText(models.Targeting{Scope: models.ScopeIndividual, TargetIDs: []string{"s1", "s2", "gone"}}, roster))
	assert.Equal(t, NoStaffSelected, DisplayText(models.Targeting{Scope: models.ScopeIndividual, TargetIDs: []string{"gone"}}, roster))
	assert.Equal(t, "full_time, part_time", DisplayText(models.Targeting{Scope: models.ScopeStaffStatus, TargetIDs: []string{"full_time", "part_time"}}, roster))
	assert.Equal(t, "", DisplayText(models.Targeting{Scope: models.ScopeAll, TargetIDs: []string{"s1"}}, roster))
}
