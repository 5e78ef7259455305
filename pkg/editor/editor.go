// Package editor runs the limit editing workflow: field edits, edit sessions
// with rollback, validated saves and two-phase deletion.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/limits"
	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/arnavshah/limits-settings-go/pkg/scope"
	"github.com/arnavshah/limits-settings-go/pkg/session"
	"github.com/arnavshah/limits-settings-go/pkg/settings"
	"github.com/arnavshah/limits-settings-go/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ViolationsPath is where clients fetch the full list behind an "issues found" notification
const ViolationsPath = "/api/violations"

var (
	// ErrNoPendingDeletion is returned by ConfirmDelete when nothing awaits confirmation
	ErrNoPendingDeletion = errors.New("no deletion awaiting confirmation")
	// ErrUnsupported is returned for operations that only exist for one limit kind
	ErrUnsupported = errors.New("operation not supported for this limit kind")
)

// Roster lists every staff member, active or not
type Roster interface {
	List(ctx context.Context) ([]models.Staff, error)
}

// Options configures an Editor
type Options struct {
	// ScheduleID is the active schedule daily limits are validated against.
	// Empty disables validation.
	ScheduleID string
	// ValidateCreates sends new daily limits through the validator instead of
	// relying on the defaults being valid
	ValidateCreates bool
}

// PendingDeletion is a deletion awaiting confirmation
type PendingDeletion struct {
	Type models.Kind `json:"type"`
	ID   string      `json:"id"`
	Name string      `json:"name"`
}

// Editor serializes edits per limit collection. Daily and monthly edits run
// independently; only the final write of the shared document is ordered. The
// document is read from the store on each call and never cached here.
type Editor struct {
	store    settings.Store
	roster   Roster
	gate     *validation.Gate
	notifier Notifier
	logger   *zap.Logger
	opts     Options
	now      func() time.Time

	// dailyMu is held across the validator call of a daily save
	dailyMu   sync.Mutex
	monthlyMu sync.Mutex
	// docMu orders read-modify-write of the whole settings document
	docMu sync.Mutex

	daily   *session.Session[models.DailyConfig]
	monthly *session.Session[models.MonthlyConfig]

	stateMu sync.Mutex
	pending *PendingDeletion
}

// New creates an Editor
func New(store settings.Store, roster Roster, gate *validation.Gate, notifier Notifier, logger *zap.Logger, opts Options) *Editor {
	return &Editor{
		store:    store,
		roster:   roster,
		gate:     gate,
		notifier: notifier,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		daily:    session.New[models.DailyConfig](),
		monthly:  session.New[models.MonthlyConfig](),
	}
}

// lockDaily fails fast while a validation is in flight instead of queueing
// behind it
func (e *Editor) lockDaily() error {
	if e.gate.Busy() {
		return validation.ErrValidationInProgress
	}
	e.dailyMu.Lock()
	return nil
}

// lock takes the collection lock of kind. Daily fails fast like lockDaily.
func (e *Editor) lock(kind models.Kind) (func(), error) {
	switch kind {
	case models.KindDaily:
		if err := e.lockDaily(); err != nil {
			return nil, err
		}
		return e.dailyMu.Unlock, nil
	case models.KindMonthly:
		e.monthlyMu.Lock()
		return e.monthlyMu.Unlock, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, kind)
}

// writeDoc re-reads the stored document, applies fn to a copy and writes it
func (e *Editor) writeDoc(ctx context.Context, fn func(*models.Settings) error) error {
	e.docMu.Lock()
	defer e.docMu.Unlock()

	doc, err := e.store.Read(ctx)
	if err != nil {
		return err
	}
	out := doc.Clone()
	if err := fn(out); err != nil {
		return err
	}
	return e.store.Write(ctx, out)
}

func (e *Editor) load(ctx context.Context) (*models.Settings, []models.Staff, error) {
	var (
		doc    *models.Settings
		roster []models.Staff
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = e.store.Read(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		roster, err = e.roster.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return doc, roster, nil
}

func (e *Editor) saveDaily(ctx context.Context, roster []models.Staff, next []models.DailyLimit, opts validation.Options) error {
	if err := models.ValidateLimits(next); err != nil {
		return err
	}
	persist := func(ctx context.Context, accepted []models.DailyLimit) error {
		return e.writeDoc(ctx, func(out *models.Settings) error {
			out.DailyLimits = models.CloneLimits(accepted)
			return nil
		})
	}
	return e.gate.Submit(ctx, next, roster, e.opts.ScheduleID, persist, opts)
}

// saveMonthly writes monthly limits straight to the store; they are never
// checked against the daily schedule
func (e *Editor) saveMonthly(ctx context.Context, next []models.MonthlyLimit) error {
	if err := models.ValidateLimits(next); err != nil {
		return err
	}
	err := e.writeDoc(ctx, func(out *models.Settings) error {
		out.MonthlyLimits = next
		return nil
	})
	if err != nil {
		e.logger.Error("saving monthly limits failed", zap.Error(err))
		return fmt.Errorf("%w: %w", validation.ErrPersistence, err)
	}
	return nil
}

func (e *Editor) mutateDaily(ctx context.Context, fn func([]models.DailyLimit) ([]models.DailyLimit, error)) error {
	doc, roster, err := e.load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(doc.DailyLimits)
	if err != nil {
		return err
	}
	return e.saveDaily(ctx, roster, next, validation.Options{})
}

func (e *Editor) mutateMonthly(ctx context.Context, fn func([]models.MonthlyLimit) ([]models.MonthlyLimit, error)) error {
	doc, err := e.store.Read(ctx)
	if err != nil {
		return err
	}
	next, err := fn(doc.MonthlyLimits)
	if err != nil {
		return err
	}
	return e.saveMonthly(ctx, next)
}

func busy(active string) error {
	return fmt.Errorf("%w: %s is open", session.ErrSessionBusy, active)
}

// CreateDaily appends a default daily limit, saves it and opens an edit on it
func (e *Editor) CreateDaily(ctx context.Context) (models.DailyLimit, error) {
	if err := e.lockDaily(); err != nil {
		return models.DailyLimit{}, e.report(err)
	}
	defer e.dailyMu.Unlock()

	if id, open := e.daily.Active(); open {
		return models.DailyLimit{}, e.report(busy(id))
	}
	doc, roster, err := e.load(ctx)
	if err != nil {
		return models.DailyLimit{}, e.report(err)
	}
	l := limits.NewDaily()
	next := limits.Create(doc.DailyLimits, l)
	opts := validation.Options{SkipValidation: !e.opts.ValidateCreates}
	if err := e.saveDaily(ctx, roster, next, opts); err != nil {
		return models.DailyLimit{}, e.report(err)
	}
	if _, err := e.daily.Begin(next, l.ID); err != nil {
		return models.DailyLimit{}, e.report(err)
	}
	e.logger.Info("daily limit created", zap.String("limit_id", l.ID))
	return l, nil
}

// CreateMonthly appends a default monthly limit, saves it and opens an edit on it
func (e *Editor) CreateMonthly(ctx context.Context) (models.MonthlyLimit, error) {
	e.monthlyMu.Lock()
	defer e.monthlyMu.Unlock()

	if id, open := e.monthly.Active(); open {
		return models.MonthlyLimit{}, e.report(busy(id))
	}
	doc, err := e.store.Read(ctx)
	if err != nil {
		return models.MonthlyLimit{}, e.report(err)
	}
	l := limits.NewMonthly()
	next := limits.Create(doc.MonthlyLimits, l)
	if err := e.saveMonthly(ctx, next); err != nil {
		return models.MonthlyLimit{}, e.report(err)
	}
	if _, err := e.monthly.Begin(next, l.ID); err != nil {
		return models.MonthlyLimit{}, e.report(err)
	}
	e.logger.Info("monthly limit created", zap.String("limit_id", l.ID))
	return l, nil
}

// UpdateDaily applies p to one daily limit and saves the result through the
// validation gate
func (e *Editor) UpdateDaily(ctx context.Context, id string, p limits.Patch[models.DailyConfig]) error {
	if err := e.lockDaily(); err != nil {
		return e.report(err)
	}
	defer e.dailyMu.Unlock()

	return e.report(e.mutateDaily(ctx, func(list []models.DailyLimit) ([]models.DailyLimit, error) {
		return limits.Update(list, id, p)
	}))
}

// UpdateMonthly applies p to one monthly limit and saves it
func (e *Editor) UpdateMonthly(ctx context.Context, id string, p limits.Patch[models.MonthlyConfig]) error {
	e.monthlyMu.Lock()
	defer e.monthlyMu.Unlock()

	return e.report(e.mutateMonthly(ctx, func(list []models.MonthlyLimit) ([]models.MonthlyLimit, error) {
		return limits.Update(list, id, p)
	}))
}

// SetScope changes who a limit applies to and clears its targets
func (e *Editor) SetScope(ctx context.Context, kind models.Kind, id string, sc models.Scope) error {
	switch kind {
	case models.KindDaily:
		if err := e.lockDaily(); err != nil {
			return e.report(err)
		}
		defer e.dailyMu.Unlock()
		return e.report(e.mutateDaily(ctx, func(list []models.DailyLimit) ([]models.DailyLimit, error) {
			return limits.SetScope(list, id, sc)
		}))
	case models.KindMonthly:
		e.monthlyMu.Lock()
		defer e.monthlyMu.Unlock()
		return e.report(e.mutateMonthly(ctx, func(list []models.MonthlyLimit) ([]models.MonthlyLimit, error) {
			return limits.SetScope(list, id, sc)
		}))
	}
	return e.report(fmt.Errorf("%w: %q", ErrUnsupported, kind))
}

// ToggleDay flips one weekday of a daily limit
func (e *Editor) ToggleDay(ctx context.Context, id string, day int) error {
	if err := e.lockDaily(); err != nil {
		return e.report(err)
	}
	defer e.dailyMu.Unlock()

	return e.report(e.mutateDaily(ctx, func(list []models.DailyLimit) ([]models.DailyLimit, error) {
		return limits.ToggleDayOfWeek(list, id, day)
	}))
}

// ToggleTarget adds or removes one target of a limit
func (e *Editor) ToggleTarget(ctx context.Context, kind models.Kind, id, target string) error {
	switch kind {
	case models.KindDaily:
		if err := e.lockDaily(); err != nil {
			return e.report(err)
		}
		defer e.dailyMu.Unlock()
		return e.report(e.mutateDaily(ctx, func(list []models.DailyLimit) ([]models.DailyLimit, error) {
			return limits.ToggleTarget(list, id, target)
		}))
	case models.KindMonthly:
		e.monthlyMu.Lock()
		defer e.monthlyMu.Unlock()
		return e.report(e.mutateMonthly(ctx, func(list []models.MonthlyLimit) ([]models.MonthlyLimit, error) {
			return limits.ToggleTarget(list, id, target)
		}))
	}
	return e.report(fmt.Errorf("%w: %q", ErrUnsupported, kind))
}

// BeginEdit opens an edit session on a stored limit. It reports false when the
// id is unknown.
func (e *Editor) BeginEdit(ctx context.Context, kind models.Kind, id string) (bool, error) {
	unlock, err := e.lock(kind)
	if err != nil {
		return false, e.report(err)
	}
	defer unlock()

	doc, err := e.store.Read(ctx)
	if err != nil {
		return false, e.report(err)
	}
	var ok bool
	switch kind {
	case models.KindDaily:
		ok, err = e.daily.Begin(doc.DailyLimits, id)
	case models.KindMonthly:
		ok, err = e.monthly.Begin(doc.MonthlyLimits, id)
	}
	if err != nil {
		return false, e.report(err)
	}
	if ok {
		e.logger.Debug("edit started", zap.String("kind", string(kind)), zap.String("limit_id", id))
	}
	return ok, nil
}

// Commit closes the open edit of kind, keeping what was saved. A daily commit
// also clears the retained violations.
func (e *Editor) Commit(kind models.Kind) (bool, error) {
	unlock, err := e.lock(kind)
	if err != nil {
		return false, e.report(err)
	}
	defer unlock()

	var ok bool
	switch kind {
	case models.KindDaily:
		ok, err = e.daily.Commit()
		if err == nil {
			e.gate.ClearViolations()
		}
	case models.KindMonthly:
		ok, err = e.monthly.Commit()
	}
	if err != nil {
		return false, e.report(err)
	}
	if ok {
		e.notifier.Notify(newNotification(LevelSuccess, "Limit saved", ""))
	}
	return ok, nil
}

// Cancel closes the open edit of kind and writes the pre-edit limit back
func (e *Editor) Cancel(ctx context.Context, kind models.Kind) (bool, error) {
	unlock, err := e.lock(kind)
	if err != nil {
		return false, e.report(err)
	}
	defer unlock()

	ok, err := e.cancel(ctx, kind)
	return ok, e.report(err)
}

// Escape cancels whichever collection has an open edit, daily first. It
// returns the kind that was cancelled, or "" when nothing was open. Only the
// collection being cancelled is locked.
func (e *Editor) Escape(ctx context.Context) (models.Kind, error) {
	var kind models.Kind
	if _, open := e.daily.Active(); open {
		kind = models.KindDaily
	} else if _, open := e.monthly.Active(); open {
		kind = models.KindMonthly
	} else {
		return "", nil
	}

	unlock, err := e.lock(kind)
	if err != nil {
		return "", e.report(err)
	}
	defer unlock()

	ok, err := e.cancel(ctx, kind)
	if !ok && err == nil {
		return "", nil
	}
	return kind, e.report(err)
}

func (e *Editor) cancel(ctx context.Context, kind models.Kind) (bool, error) {
	switch kind {
	case models.KindDaily:
		return e.daily.Cancel(func(snap models.DailyLimit) error {
			doc, roster, err := e.load(ctx)
			if err != nil {
				return err
			}
			next, err := limits.Replace(doc.DailyLimits, snap)
			if errors.Is(err, limits.ErrLimitNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return e.saveDaily(ctx, roster, next, validation.Options{SkipValidation: true})
		})
	case models.KindMonthly:
		return e.monthly.Cancel(func(snap models.MonthlyLimit) error {
			doc, err := e.store.Read(ctx)
			if err != nil {
				return err
			}
			next, err := limits.Replace(doc.MonthlyLimits, snap)
			if errors.Is(err, limits.ErrLimitNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return e.saveMonthly(ctx, next)
		})
	}
	return false, fmt.Errorf("%w: %q", ErrUnsupported, kind)
}

// RequestDelete records a deletion awaiting confirmation. A later request
// replaces an earlier unconfirmed one.
func (e *Editor) RequestDelete(ctx context.Context, kind models.Kind, id string) (PendingDeletion, error) {
	doc, err := e.store.Read(ctx)
	if err != nil {
		return PendingDeletion{}, e.report(err)
	}
	var (
		name  string
		found bool
	)
	switch kind {
	case models.KindDaily:
		var l models.DailyLimit
		l, _, found = limits.Find(doc.DailyLimits, id)
		name = l.Name
	case models.KindMonthly:
		var l models.MonthlyLimit
		l, _, found = limits.Find(doc.MonthlyLimits, id)
		name = l.Name
	default:
		return PendingDeletion{}, e.report(fmt.Errorf("%w: %q", ErrUnsupported, kind))
	}
	if !found {
		return PendingDeletion{}, e.report(fmt.Errorf("%w: %s", limits.ErrLimitNotFound, id))
	}
	p := PendingDeletion{Type: kind, ID: id, Name: name}
	e.stateMu.Lock()
	e.pending = &p
	e.stateMu.Unlock()
	return p, nil
}

// ConfirmDelete removes the limit of the pending deletion. Deletion is not
// validated against the schedule. Failures are logged, clear the pending
// deletion and raise no notification.
func (e *Editor) ConfirmDelete(ctx context.Context) (PendingDeletion, error) {
	e.stateMu.Lock()
	if e.pending == nil {
		e.stateMu.Unlock()
		return PendingDeletion{}, ErrNoPendingDeletion
	}
	p := *e.pending
	e.pending = nil
	e.stateMu.Unlock()

	if err := e.delete(ctx, p); err != nil {
		e.logger.Error("deleting limit failed",
			zap.String("kind", string(p.Type)),
			zap.String("limit_id", p.ID),
			zap.Error(err),
		)
		return p, err
	}
	e.logger.Info("limit deleted", zap.String("kind", string(p.Type)), zap.String("limit_id", p.ID))
	e.notifier.Notify(newNotification(LevelSuccess, "Limit deleted", p.Name))
	return p, nil
}

// delete waits for the collection lock; a daily deletion queues behind an
// in-flight validation instead of failing
func (e *Editor) delete(ctx context.Context, p PendingDeletion) error {
	switch p.Type {
	case models.KindDaily:
		e.dailyMu.Lock()
		defer e.dailyMu.Unlock()
		err := e.writeDoc(ctx, func(out *models.Settings) (err error) {
			out.DailyLimits, err = limits.Delete(out.DailyLimits, p.ID)
			return err
		})
		if err != nil {
			return err
		}
		if id, open := e.daily.Active(); open && id == p.ID {
			e.daily.Abandon()
		}
	case models.KindMonthly:
		e.monthlyMu.Lock()
		defer e.monthlyMu.Unlock()
		err := e.writeDoc(ctx, func(out *models.Settings) (err error) {
			out.MonthlyLimits, err = limits.Delete(out.MonthlyLimits, p.ID)
			return err
		})
		if err != nil {
			return err
		}
		if id, open := e.monthly.Active(); open && id == p.ID {
			e.monthly.Abandon()
		}
	}
	return nil
}

// CancelDelete drops the pending deletion. It reports whether one existed.
func (e *Editor) CancelDelete() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	had := e.pending != nil
	e.pending = nil
	return had
}

// Violations returns the violations of the last rejected daily save
func (e *Editor) Violations() []string {
	return e.gate.Violations()
}

// Settings returns the stored document
func (e *Editor) Settings(ctx context.Context) (*models.Settings, error) {
	return e.store.Read(ctx)
}

// View is the editor state shown to operators
type View struct {
	Settings        *models.Settings       `json:"settings"`
	Warnings        map[string][]string    `json:"warnings,omitempty"`
	Editing         map[models.Kind]string `json:"editing"`
	PendingDeletion *PendingDeletion       `json:"pendingDeletion,omitempty"`
	Violations      []string               `json:"violations"`
}

// View returns the stored document together with the open sessions. It does
// not wait for in-flight edits.
func (e *Editor) View(ctx context.Context) (*View, error) {
	doc, err := e.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	v := &View{
		Settings:   doc,
		Warnings:   doc.Warnings(),
		Editing:    map[models.Kind]string{},
		Violations: e.gate.Violations(),
	}
	if v.Violations == nil {
		v.Violations = []string{}
	}
	if id, open := e.daily.Active(); open {
		v.Editing[models.KindDaily] = id
	}
	if id, open := e.monthly.Active(); open {
		v.Editing[models.KindMonthly] = id
	}
	e.stateMu.Lock()
	if e.pending != nil {
		p := *e.pending
		v.PendingDeletion = &p
	}
	e.stateMu.Unlock()
	return v, nil
}

// Targets describes what a limit targets and what it could target
type Targets struct {
	Scope   models.Scope   `json:"scope"`
	Options []scope.Option `json:"options"`
	Display string         `json:"display"`
}

// Targets resolves the target options of one limit against the active roster
func (e *Editor) Targets(ctx context.Context, kind models.Kind, id string) (*Targets, error) {
	doc, roster, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	var (
		t     *models.Targeting
		found bool
	)
	switch kind {
	case models.KindDaily:
		var l models.DailyLimit
		if l, _, found = limits.Find(doc.DailyLimits, id); found {
			t = l.Target()
		}
	case models.KindMonthly:
		var l models.MonthlyLimit
		if l, _, found = limits.Find(doc.MonthlyLimits, id); found {
			t = l.Target()
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, kind)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", limits.ErrLimitNotFound, id)
	}
	opts := scope.TargetOptions(t.Scope, roster, e.now())
	if opts == nil {
		opts = []scope.Option{}
	}
	return &Targets{
		Scope:   t.Scope,
		Options: opts,
		Display: scope.DisplayText(*t, roster),
	}, nil
}

// ActiveStaff lists staff whose end period has not passed
func (e *Editor) ActiveStaff(ctx context.Context) ([]models.Staff, error) {
	all, err := e.roster.List(ctx)
	if err != nil {
		return nil, err
	}
	return scope.ActiveStaff(all, e.now()), nil
}

// report turns err into an operator notification and returns it unchanged
func (e *Editor) report(err error) error {
	if err == nil {
		return nil
	}
	var rejected *validation.RejectedError
	switch {
	case errors.As(err, &rejected):
		e.notifier.Notify(newNotification(LevelError, rejected.Error(),
			"Changes were not saved because they conflict with the current schedule.",
			Action{Label: "View Details", Target: ViolationsPath},
		))
	case errors.Is(err, validation.ErrValidatorFailed):
		e.notifier.Notify(newNotification(LevelError, "Validation failed",
			"The schedule could not be checked. Nothing was saved; try again."))
	case errors.Is(err, validation.ErrPersistence):
		e.notifier.Notify(newNotification(LevelError, "Save failed",
			"The limits could not be saved. Reload the settings before editing further."))
	case errors.Is(err, validation.ErrValidationInProgress):
		e.notifier.Notify(newNotification(LevelInfo, "Validation in progress",
			"Wait for the current save to finish."))
	case errors.Is(err, session.ErrSessionBusy):
		e.notifier.Notify(newNotification(LevelWarning, "Another limit is being edited",
			"Save or cancel it first."))
	default:
		e.notifier.Notify(newNotification(LevelError, "Error", err.Error()))
	}
	return err
}
