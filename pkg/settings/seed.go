package settings

import (
	"context"
	"encoding/json"
	"io"

	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML file limitsctl loads into an empty or test database
type Seed struct {
	Staff        []models.Staff    `yaml:"staff"`
	Schedules    []models.Schedule `yaml:"schedules"`
	Settings     models.Settings   `yaml:"settings"`
	MLParameters map[string]any    `yaml:"mlParameters"`
}

// ReadSeed decodes a seed file and rejects unknown keys and invalid limits
func ReadSeed(r io.Reader) (*Seed, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Seed
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode seed")
	}
	if err := models.ValidateLimits(s.Settings.DailyLimits); err != nil {
		return nil, errors.Wrap(err, "daily limits")
	}
	if err := models.ValidateLimits(s.Settings.MonthlyLimits); err != nil {
		return nil, errors.Wrap(err, "monthly limits")
	}
	return &s, nil
}

// Apply replaces the roster, the listed schedules and the settings document
func (s *Seed) Apply(ctx context.Context, store Store, roster *GormRoster, schedules *GormSchedules) error {
	if err := roster.Replace(ctx, s.Staff); err != nil {
		return err
	}
	for _, sched := range s.Schedules {
		if err := schedules.Replace(ctx, sched); err != nil {
			return err
		}
	}

	doc := s.Settings.Clone()
	if doc.DailyLimits == nil {
		doc.DailyLimits = []models.DailyLimit{}
	}
	if doc.MonthlyLimits == nil {
		doc.MonthlyLimits = []models.MonthlyLimit{}
	}
	for i := range doc.DailyLimits {
		if t := doc.DailyLimits[i].Target(); t.TargetIDs == nil {
			t.TargetIDs = []string{}
		}
	}
	for i := range doc.MonthlyLimits {
		if t := doc.MonthlyLimits[i].Target(); t.TargetIDs == nil {
			t.TargetIDs = []string{}
		}
	}
	if len(s.MLParameters) > 0 {
		raw, err := json.Marshal(s.MLParameters)
		if err != nil {
			return errors.Wrap(err, "encode mlParameters")
		}
		doc.MLParameters = raw
	}
	return store.Write(ctx, doc)
}
