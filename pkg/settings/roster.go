package settings

import (
	"context"

	"github.com/arnavshah/limits-settings-go/pkg/database"
	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormRoster reads the staff roster from the database
type GormRoster struct {
	db *gorm.DB
}

// NewGormRoster creates a GormRoster
func NewGormRoster(db *gorm.DB) *GormRoster {
	return &GormRoster{db: db}
}

// List returns every staff member in roster order
func (r *GormRoster) List(ctx context.Context) ([]models.Staff, error) {
	var recs []database.StaffRecord
	if err := r.db.WithContext(ctx).Order("position ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "list staff")
	}
	out := make([]models.Staff, 0, len(recs))
	for _, rec := range recs {
		out = append(out, staffFromRecord(rec))
	}
	return out, nil
}

// Replace swaps the whole roster for staff, keeping their order
func (r *GormRoster) Replace(ctx context.Context, staff []models.Staff) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&database.StaffRecord{}).Error; err != nil {
			return err
		}
		if len(staff) == 0 {
			return nil
		}
		recs := make([]database.StaffRecord, 0, len(staff))
		for i, s := range staff {
			recs = append(recs, staffToRecord(s, i))
		}
		return tx.Create(&recs).Error
	})
	return errors.Wrap(err, "replace staff")
}

func staffFromRecord(rec database.StaffRecord) models.Staff {
	s := models.Staff{ID: rec.ID, Name: rec.Name, Status: rec.Status}
	if rec.EndYear != nil && rec.EndMonth != nil {
		s.EndPeriod = &models.EndPeriod{Year: *rec.EndYear, Month: *rec.EndMonth, Day: rec.EndDay}
	}
	return s
}

func staffToRecord(s models.Staff, pos int) database.StaffRecord {
	rec := database.StaffRecord{ID: s.ID, Name: s.Name, Status: s.Status, Position: pos}
	if p := s.EndPeriod; p != nil {
		year, month := p.Year, p.Month
		rec.EndYear, rec.EndMonth, rec.EndDay = &year, &month, p.Day
	}
	return rec
}

// GormSchedules reads stored schedule entries
type GormSchedules struct {
	db *gorm.DB
}

// NewGormSchedules creates a GormSchedules
func NewGormSchedules(db *gorm.DB) *GormSchedules {
	return &GormSchedules{db: db}
}

// Entries returns the assignments of one schedule ordered by date
func (r *GormSchedules) Entries(ctx context.Context, scheduleID string) ([]models.ScheduleEntry, error) {
	var recs []database.ScheduleEntryRecord
	err := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Order("date ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list schedule entries")
	}
	out := make([]models.ScheduleEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.ScheduleEntry{
			StaffID:   rec.StaffID,
			Date:      rec.Date,
			ShiftType: models.ShiftType(rec.ShiftType),
		})
	}
	return out, nil
}

// Replace stores sched, dropping any previous entries with the same id
func (r *GormSchedules) Replace(ctx context.Context, sched models.Schedule) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("schedule_id = ?", sched.ID).Delete(&database.ScheduleEntryRecord{}).Error; err != nil {
			return err
		}
		if len(sched.Entries) == 0 {
			return nil
		}
		recs := make([]database.ScheduleEntryRecord, 0, len(sched.Entries))
		for _, e := range sched.Entries {
			recs = append(recs, database.ScheduleEntryRecord{
				ScheduleID: sched.ID,
				Date:       e.Date,
				StaffID:    e.StaffID,
				ShiftType:  string(e.ShiftType),
			})
		}
		return tx.Create(&recs).Error
	})
	return errors.Wrap(err, "replace schedule")
}
