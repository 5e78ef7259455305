package models

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

func init() {
	// maxCount travels as a JSON number, not a quoted string
	decimal.MarshalJSONWithoutQuotes = true
}

// ErrInvalidLimit is returned when a limit field is out of range or an enum
// value is unknown
var ErrInvalidLimit = errors.New("invalid limit")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidLimit, fmt.Sprintf(format, args...))
}

// Kind names one of the two limit collections
type Kind string

const (
	KindDaily   Kind = "daily"
	KindMonthly Kind = "monthly"
)

// ParseKind converts a path segment into a collection kind
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindDaily, KindMonthly:
		return k, nil
	}
	return "", invalid("unknown limit collection %q", s)
}

// ShiftType is the shift a daily limit counts
type ShiftType string

const (
	ShiftEarly ShiftType = "early"
	ShiftLate  ShiftType = "late"
	ShiftOff   ShiftType = "off"
	ShiftAny   ShiftType = "any"
)

func (s ShiftType) Valid() bool {
	switch s {
	case ShiftEarly, ShiftLate, ShiftOff, ShiftAny:
		return true
	}
	return false
}

func (s *ShiftType) UnmarshalText(b []byte) error {
	v := ShiftType(b)
	if !v.Valid() {
		return invalid("unknown shift type %q", b)
	}
	*s = v
	return nil
}

// Scope is the population a limit applies to
type Scope string

const (
	ScopeAll         Scope = "all"
	ScopeStaffStatus Scope = "staff_status"
	ScopeIndividual  Scope = "individual"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeAll, ScopeStaffStatus, ScopeIndividual:
		return true
	}
	return false
}

func (s *Scope) UnmarshalText(b []byte) error {
	v := Scope(b)
	if !v.Valid() {
		return invalid("unknown scope %q", b)
	}
	*s = v
	return nil
}

// MonthlyLimitType is the quantity a monthly limit bounds
type MonthlyLimitType string

const (
	MaxOffDays     MonthlyLimitType = "max_off_days"
	MaxWorkDays    MonthlyLimitType = "max_work_days"
	MaxEarlyShifts MonthlyLimitType = "max_early_shifts"
	MaxLateShifts  MonthlyLimitType = "max_late_shifts"
	MinOffDays     MonthlyLimitType = "min_off_days"
)

func (t MonthlyLimitType) Valid() bool {
	switch t {
	case MaxOffDays, MaxWorkDays, MaxEarlyShifts, MaxLateShifts, MinOffDays:
		return true
	}
	return false
}

func (t *MonthlyLimitType) UnmarshalText(b []byte) error {
	v := MonthlyLimitType(b)
	if !v.Valid() {
		return invalid("unknown monthly limit type %q", b)
	}
	*t = v
	return nil
}

// Weekdays is a sorted set of day-of-week ids, Sunday = 0
type Weekdays []int

// AllWeekdays covers every day of the week
func AllWeekdays() Weekdays { return Weekdays{0, 1, 2, 3, 4, 5, 6} }

func (w Weekdays) Contains(day int) bool {
	return slices.Contains(w, day)
}

// Toggle returns a new set with day added if absent or removed if present
func (w Weekdays) Toggle(day int) Weekdays {
	out := make(Weekdays, 0, len(w)+1)
	found := false
	for _, d := range w {
		if d == day {
			found = true
			continue
		}
		out = append(out, d)
	}
	if !found {
		out = append(out, day)
		slices.Sort(out)
	}
	return out
}

func (w Weekdays) validate() error {
	seen := make(map[int]bool, len(w))
	for _, d := range w {
		if d < 0 || d > 6 {
			return invalid("day of week %d out of range 0-6", d)
		}
		if seen[d] {
			return invalid("day of week %d listed twice", d)
		}
		seen[d] = true
	}
	return nil
}

// Targeting selects who a limit applies to. TargetIDs are ignored for ScopeAll.
type Targeting struct {
	Scope     Scope    `json:"scope" yaml:"scope"`
	TargetIDs []string `json:"targetIds" yaml:"targetIds"`
}

// NoTargets reports whether a scoped limit has nobody selected
func (t Targeting) NoTargets() bool {
	return t.Scope != ScopeAll && len(t.TargetIDs) == 0
}

// Includes reports whether the limit applies to the given staff member
func (t Targeting) Includes(s Staff) bool {
	switch t.Scope {
	case ScopeAll:
		return true
	case ScopeStaffStatus:
		return s.Status != "" && slices.Contains(t.TargetIDs, s.Status)
	case ScopeIndividual:
		return slices.Contains(t.TargetIDs, s.ID)
	}
	return false
}

func (t Targeting) validate() error {
	if !t.Scope.Valid() {
		return invalid("unknown scope %q", t.Scope)
	}
	return nil
}

// DailyConfig is the payload of a per-day limit
type DailyConfig struct {
	ShiftType  ShiftType `json:"shiftType" yaml:"shiftType"`
	MaxCount   int       `json:"maxCount" yaml:"maxCount"`
	DaysOfWeek Weekdays  `json:"daysOfWeek" yaml:"daysOfWeek"`
	Targeting  `yaml:",inline"`
}

func (c DailyConfig) Validate() error {
	if !c.ShiftType.Valid() {
		return invalid("unknown shift type %q", c.ShiftType)
	}
	if c.MaxCount < 0 || c.MaxCount > 20 {
		return invalid("daily maxCount %d out of range 0-20", c.MaxCount)
	}
	if err := c.DaysOfWeek.validate(); err != nil {
		return err
	}
	return c.Targeting.validate()
}

// DistributionRules shape how a monthly quantity is spread over the month
type DistributionRules struct {
	MaxConsecutive int  `json:"maxConsecutive" yaml:"maxConsecutive"`
	PreferWeekends bool `json:"preferWeekends" yaml:"preferWeekends"`
}

// MonthlyConfig is the payload of a per-month limit
type MonthlyConfig struct {
	LimitType         MonthlyLimitType  `json:"limitType" yaml:"limitType"`
	MaxCount          decimal.Decimal   `json:"maxCount" yaml:"maxCount"`
	Targeting         `yaml:",inline"`
	DistributionRules DistributionRules `json:"distributionRules" yaml:"distributionRules"`
}

var (
	two       = decimal.NewFromInt(2)
	monthDays = decimal.NewFromInt(31)
)

func (c MonthlyConfig) Validate() error {
	if !c.LimitType.Valid() {
		return invalid("unknown monthly limit type %q", c.LimitType)
	}
	if c.MaxCount.IsNegative() || c.MaxCount.GreaterThan(monthDays) {
		return invalid("monthly maxCount %s out of range 0-31", c.MaxCount)
	}
	// half days are only meaningful for days off
	if c.LimitType == MaxOffDays {
		if !c.MaxCount.Mul(two).IsInteger() {
			return invalid("maxCount %s must be a multiple of 0.5", c.MaxCount)
		}
	} else if !c.MaxCount.IsInteger() {
		return invalid("maxCount %s must be a whole number for %s", c.MaxCount, c.LimitType)
	}
	if r := c.DistributionRules.MaxConsecutive; r < 1 || r > 7 {
		return invalid("maxConsecutive %d out of range 1-7", r)
	}
	return c.Targeting.validate()
}

// Config is the set of limit payload variants
type Config interface {
	DailyConfig | MonthlyConfig
	Validate() error
}

// Limit is a named constraint rule handed to the optimizer
type Limit[C Config] struct {
	ID               string `json:"id" yaml:"id"`
	Name             string `json:"name" yaml:"name"`
	Description      string `json:"description,omitempty" yaml:"description,omitempty"`
	IsHardConstraint bool   `json:"isHardConstraint" yaml:"isHardConstraint"`
	PenaltyWeight    int    `json:"penaltyWeight" yaml:"penaltyWeight"`
	LimitConfig      C      `json:"limitConfig" yaml:"limitConfig"`
}

type (
	DailyLimit   = Limit[DailyConfig]
	MonthlyLimit = Limit[MonthlyConfig]
)

// Target returns a pointer to the limit's targeting so callers can edit it in place
func (l *Limit[C]) Target() *Targeting {
	switch c := any(&l.LimitConfig).(type) {
	case *DailyConfig:
		return &c.Targeting
	case *MonthlyConfig:
		return &c.Targeting
	}
	panic("unreachable")
}

// Clone returns a deep copy that shares no slices with l
func (l Limit[C]) Clone() Limit[C] {
	out := l
	switch c := any(&out.LimitConfig).(type) {
	case *DailyConfig:
		c.DaysOfWeek = slices.Clone(c.DaysOfWeek)
		c.TargetIDs = slices.Clone(c.TargetIDs)
	case *MonthlyConfig:
		c.TargetIDs = slices.Clone(c.TargetIDs)
	}
	return out
}

func (l Limit[C]) Validate() error {
	if l.ID == "" {
		return invalid("missing id")
	}
	if l.PenaltyWeight < 1 || l.PenaltyWeight > 100 {
		return invalid("penaltyWeight %d out of range 1-100", l.PenaltyWeight)
	}
	if err := l.LimitConfig.Validate(); err != nil {
		return fmt.Errorf("limit %s: %w", l.ID, err)
	}
	return nil
}

// Warnings lists persistable but suspicious settings of the limit
func (l Limit[C]) Warnings() []string {
	var out []string
	if t := l.Target(); t.NoTargets() {
		out = append(out, fmt.Sprintf("%q has scope %s but no targets selected; it applies to no one", l.Name, t.Scope))
	}
	return out
}

// CloneLimits deep-copies a collection
func CloneLimits[C Config](list []Limit[C]) []Limit[C] {
	if list == nil {
		return nil
	}
	out := make([]Limit[C], len(list))
	for i, l := range list {
		out[i] = l.Clone()
	}
	return out
}

// ValidateLimits checks every limit and id uniqueness within the collection
func ValidateLimits[C Config](list []Limit[C]) error {
	seen := make(map[string]bool, len(list))
	for _, l := range list {
		if seen[l.ID] {
			return invalid("duplicate id %s", l.ID)
		}
		seen[l.ID] = true
		if err := l.Validate(); err != nil {
			return err
		}
	}
	return nil
}
