package settings

import (
	"context"
	"strings"
	"testing"

	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
staff:
  - id: s1
    name: Jane Doe
    status: full_time
  - id: s2
    name: John Roe
    status: part_time
    endPeriod: {year: 2023, month: 1}
schedules:
  - id: june-2024
    entries:
      - {staffId: s1, date: "2024-06-03", shiftType: early}
settings:
  dailyLimits:
    - id: d1
      name: Early cap
      penaltyWeight: 50
      limitConfig:
        shiftType: early
        maxCount: 2
        daysOfWeek: [0, 1, 2, 3, 4, 5, 6]
        scope: all
  monthlyLimits:
    - id: m1
      name: Days off
      penaltyWeight: 40
      limitConfig:
        limitType: max_off_days
        maxCount: 8.5
        scope: staff_status
        targetIds: [full_time]
        distributionRules: {maxConsecutive: 2, preferWeekends: true}
mlParameters:
  learningRate: 0.1
`

func TestSeedApply(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	seed, err := ReadSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)

	store := NewGormStore(db)
	roster := NewGormRoster(db)
	schedules := NewGormSchedules(db)
	require.NoError(t, seed.Apply(ctx, store, roster, schedules))

	doc, err := store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, doc.DailyLimits, 1)
	assert.Equal(t, []string{}, doc.DailyLimits[0].LimitConfig.TargetIDs)
	require.Len(t, doc.MonthlyLimits, 1)
	assert.Equal(t, "8.5", doc.MonthlyLimits[0].LimitConfig.MaxCount.String())
	assert.True(t, doc.MonthlyLimits[0].LimitConfig.DistributionRules.PreferWeekends)
	assert.JSONEq(t, `{"learningRate":0.1}`, string(doc.MLParameters))

	staff, err := roster.List(ctx)
	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, 1, staff[1].EndPeriod.Month)
	assert.Nil(t, staff[1].EndPeriod.Day)

	entries, err := schedules.Entries(ctx, "june-2024")
	require.NoError(t, err)
	assert.Equal(t, []models.ScheduleEntry{{StaffID: "s1", Date: "2024-06-03", ShiftType: models.ShiftEarly}}, entries)
}

func TestReadSeedRejectsBadInput(t *testing.T) {
	_, err := ReadSeed(strings.NewReader("staf: []\n"))
	require.Error(t, err, "unknown keys are rejected")

	_, err = ReadSeed(strings.NewReader(`
settings:
  dailyLimits:
    - id: d1
      name: Bad
      penaltyWeight: 50
      limitConfig: {shiftType: night, maxCount: 1, scope: all}
`))
	require.Error(t, err)

	_, err = ReadSeed(strings.NewReader(`
settings:
  dailyLimits:
    - id: d1
      name: Too many
      penaltyWeight: 50
      limitConfig: {shiftType: early, maxCount: 21, scope: all}
`))
	require.ErrorIs(t, err, models.ErrInvalidLimit)
}
