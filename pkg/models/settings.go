package models

import (
	"encoding/json"
	"slices"

	"github.com/shopspring/decimal"
)

const (
	DefaultDailyName     = "New Daily Limit"
	DefaultMonthlyName   = "New Monthly Limit"
	DefaultPenaltyWeight = 50
)

// DefaultDailyConfig is the payload of a freshly created daily limit.
//
// New daily limits are saved without consulting the schedule validator, so
// these values must never reject an existing schedule: every day is covered
// but maxCount is generous. Lowering maxCount here breaks that precondition
// unless editor.validate_creates is turned on.
func DefaultDailyConfig() DailyConfig {
	return DailyConfig{
		ShiftType:  ShiftEarly,
		MaxCount:   3,
		DaysOfWeek: AllWeekdays(),
		Targeting:  Targeting{Scope: ScopeAll, TargetIDs: []string{}},
	}
}

// DefaultMonthlyConfig is the payload of a freshly created monthly limit
func DefaultMonthlyConfig() MonthlyConfig {
	return MonthlyConfig{
		LimitType: MaxOffDays,
		MaxCount:  decimal.NewFromInt(8),
		Targeting: Targeting{Scope: ScopeAll, TargetIDs: []string{}},
		DistributionRules: DistributionRules{
			MaxConsecutive: 2,
			PreferWeekends: false,
		},
	}
}

// Settings is the whole settings document read from and written to the store
type Settings struct {
	DailyLimits   []DailyLimit    `json:"dailyLimits" yaml:"dailyLimits"`
	MonthlyLimits []MonthlyLimit  `json:"monthlyLimits" yaml:"monthlyLimits"`
	MLParameters  json.RawMessage `json:"mlParameters,omitempty" yaml:"-"`
}

// Clone deep-copies the document
func (s *Settings) Clone() *Settings {
	if s == nil {
		return &Settings{}
	}
	return &Settings{
		DailyLimits:   CloneLimits(s.DailyLimits),
		MonthlyLimits: CloneLimits(s.MonthlyLimits),
		MLParameters:  slices.Clone(s.MLParameters),
	}
}

// Warnings collects the warnings of every limit keyed by limit id
func (s *Settings) Warnings() map[string][]string {
	out := make(map[string][]string)
	for _, l := range s.DailyLimits {
		if w := l.Warnings(); len(w) > 0 {
			out[l.ID] = w
		}
	}
	for _, l := range s.MonthlyLimits {
		if w := l.Warnings(); len(w) > 0 {
			out[l.ID] = w
		}
	}
	return out
}
