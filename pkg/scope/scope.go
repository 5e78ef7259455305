package scope

import (
	"strings"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/models"
)

// NoStaffSelected is shown for an individual-scope limit whose targets resolve to nobody
const NoStaffSelected = "No staff selected"

// Option is one selectable target of a scoped limit
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// IsActive reports whether a staff member still works on asOf. Only the
// calendar date of asOf (in UTC) is compared.
func IsActive(s models.Staff, asOf time.Time) bool {
	if s.EndPeriod == nil {
		return true
	}
	y, m, d := asOf.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !s.EndPeriod.LastDay().Before(today)
}

// ActiveStaff filters out staff whose end period lies before asOf
func ActiveStaff(all []models.Staff, asOf time.Time) []models.Staff {
	out := make([]models.Staff, 0, len(all))
	for _, s := range all {
		if IsActive(s, asOf) {
			out = append(out, s)
		}
	}
	return out
}

// TargetOptions lists what a limit with the given scope can target
func TargetOptions(sc models.Scope, all []models.Staff, asOf time.Time) []Option {
	switch sc {
	case models.ScopeStaffStatus:
		seen := make(map[string]bool)
		var out []Option
		for _, s := range ActiveStaff(all, asOf) {
			if s.Status == "" || seen[s.Status] {
				continue
			}
			seen[s.Status] = true
			out = append(out, Option{ID: s.Status, Label: s.Status})
		}
		return out
	case models.ScopeIndividual:
		active := ActiveStaff(all, asOf)
		out := make([]Option, 0, len(active))
		for _, s := range active {
			out = append(out, Option{ID: s.ID, Label: s.Name})
		}
		return out
	}
	return nil
}

// DisplayText summarises who a limit targets
func DisplayText(t models.Targeting, all []models.Staff) string {
	switch t.Scope {
	case models.ScopeIndividual:
		byID := make(map[string]string, len(all))
		for _, s := range all {
			byID[s.ID] = s.Name
		}
		var names []string
		for _, id := range t.TargetIDs {
			if name, ok := byID[id]; ok {
				names = append(names, name)
			}
		}
		if len(names) == 0 {
			return NoStaffSelected
		}
		return strings.Join(names, ", ")
	case models.ScopeStaffStatus:
		return strings.Join(t.TargetIDs, ", ")
	}
	return ""
}
