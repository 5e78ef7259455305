// Package limits holds the pure list operations behind limit editing. Every
// function returns a new collection and leaves its input untouched.
package limits

import (
	"errors"
	"fmt"
	"slices"

	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/google/uuid"
)

// ErrLimitNotFound is returned when no limit in the collection has the given id
var ErrLimitNotFound = errors.New("limit not found")

// Patch lists the fields to overwrite. LimitConfig replaces the whole payload;
// merging nested fields is the caller's job.
type Patch[C models.Config] struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	IsHardConstraint *bool   `json:"isHardConstraint"`
	PenaltyWeight    *int    `json:"penaltyWeight"`
	LimitConfig      *C      `json:"limitConfig"`
}

// NewDaily builds a daily limit with a fresh id and the default payload
func NewDaily() models.DailyLimit {
	return models.DailyLimit{
		ID:            uuid.NewString(),
		Name:          models.DefaultDailyName,
		PenaltyWeight: models.DefaultPenaltyWeight,
		LimitConfig:   models.DefaultDailyConfig(),
	}
}

// NewMonthly builds a monthly limit with a fresh id and the default payload
func NewMonthly() models.MonthlyLimit {
	return models.MonthlyLimit{
		ID:            uuid.NewString(),
		Name:          models.DefaultMonthlyName,
		PenaltyWeight: models.DefaultPenaltyWeight,
		LimitConfig:   models.DefaultMonthlyConfig(),
	}
}

// Find returns the limit with the given id and its index
func Find[C models.Config](list []models.Limit[C], id string) (models.Limit[C], int, bool) {
	for i, l := range list {
		if l.ID == id {
			return l, i, true
		}
	}
	return models.Limit[C]{}, -1, false
}

// Create appends l to the collection
func Create[C models.Config](list []models.Limit[C], l models.Limit[C]) []models.Limit[C] {
	out := make([]models.Limit[C], 0, len(list)+1)
	out = append(out, list...)
	return append(out, l.Clone())
}

// Update shallow-merges p into the limit with the given id. A scope change
// always empties targetIds.
func Update[C models.Config](list []models.Limit[C], id string, p Patch[C]) ([]models.Limit[C], error) {
	return modify(list, id, func(l *models.Limit[C]) error {
		if p.Name != nil {
			l.Name = *p.Name
		}
		if p.Description != nil {
			l.Description = *p.Description
		}
		if p.IsHardConstraint != nil {
			l.IsHardConstraint = *p.IsHardConstraint
		}
		if p.PenaltyWeight != nil {
			l.PenaltyWeight = *p.PenaltyWeight
		}
		if p.LimitConfig != nil {
			prev := l.Target().Scope
			next := models.Limit[C]{LimitConfig: *p.LimitConfig}.Clone()
			l.LimitConfig = next.LimitConfig
			if t := l.Target(); t.Scope != prev || t.TargetIDs == nil {
				t.TargetIDs = []string{}
			}
		}
		return nil
	})
}

// Replace swaps the stored limit with the same id for l, field for field
func Replace[C models.Config](list []models.Limit[C], l models.Limit[C]) ([]models.Limit[C], error) {
	return modify(list, l.ID, func(dst *models.Limit[C]) error {
		*dst = l.Clone()
		return nil
	})
}

// Delete removes the limit with the given id
func Delete[C models.Config](list []models.Limit[C], id string) ([]models.Limit[C], error) {
	_, i, ok := Find(list, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLimitNotFound, id)
	}
	out := make([]models.Limit[C], 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...), nil
}

// SetScope changes the scope of a limit and clears its targets
func SetScope[C models.Config](list []models.Limit[C], id string, scope models.Scope) ([]models.Limit[C], error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: unknown scope %q", models.ErrInvalidLimit, scope)
	}
	return modify(list, id, func(l *models.Limit[C]) error {
		t := l.Target()
		if t.Scope != scope {
			t.Scope = scope
			t.TargetIDs = []string{}
		}
		return nil
	})
}

// ToggleDayOfWeek adds or removes one weekday of a daily limit
func ToggleDayOfWeek(list []models.DailyLimit, id string, day int) ([]models.DailyLimit, error) {
	if day < 0 || day > 6 {
		return nil, fmt.Errorf("%w: day of week %d out of range 0-6", models.ErrInvalidLimit, day)
	}
	return modify(list, id, func(l *models.DailyLimit) error {
		l.LimitConfig.DaysOfWeek = l.LimitConfig.DaysOfWeek.Toggle(day)
		return nil
	})
}

// ToggleTarget adds or removes one target id, keeping selection order
func ToggleTarget[C models.Config](list []models.Limit[C], id, targetID string) ([]models.Limit[C], error) {
	return modify(list, id, func(l *models.Limit[C]) error {
		t := l.Target()
		if i := slices.Index(t.TargetIDs, targetID); i >= 0 {
			t.TargetIDs = slices.Delete(t.TargetIDs, i, i+1)
		} else {
			t.TargetIDs = append(t.TargetIDs, targetID)
		}
		return nil
	})
}

// modify copies the collection, applies fn to a deep copy of the matching
// limit and returns the new collection
func modify[C models.Config](list []models.Limit[C], id string, fn func(*models.Limit[C]) error) ([]models.Limit[C], error) {
	_, i, ok := Find(list, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLimitNotFound, id)
	}
	out := slices.Clone(list)
	l := list[i].Clone()
	if err := fn(&l); err != nil {
		return nil, err
	}
	out[i] = l
	return out, nil
}
