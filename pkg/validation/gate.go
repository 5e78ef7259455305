// Package validation checks proposed daily limits against the active schedule
// before they are saved.
package validation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/arnavshah/limits-settings-go/pkg/models"
	"go.uber.org/zap"
)

// Validator reports every entry of the schedule that the proposed limits would
// break. An empty result means the schedule stays valid.
type Validator interface {
	Validate(ctx context.Context, scheduleID string, proposed []models.DailyLimit, roster []models.Staff) ([]string, error)
}

// PersistFunc writes the accepted daily limits
type PersistFunc func(ctx context.Context, limits []models.DailyLimit) error

var (
	// ErrValidationRejected matches a *RejectedError
	ErrValidationRejected = errors.New("limits would invalidate the current schedule")
	// ErrValidatorFailed means the validator itself could not answer
	ErrValidatorFailed = errors.New("schedule validation failed")
	// ErrPersistence means the limits passed validation but could not be saved
	ErrPersistence = errors.New("failed to save limits")
	// ErrValidationInProgress is returned while another submit is pending
	ErrValidationInProgress = errors.New("validation already in progress")
)

// RejectedError carries the violations that blocked a save
type RejectedError struct {
	Violations []string
}

func (e *RejectedError) Error() string {
	if len(e.Violations) == 1 {
		return "1 issue found"
	}
	return fmt.Sprintf("%d issues found", len(e.Violations))
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrValidationRejected
}

// ErrorKind names the failure class of a gate error for display
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidationRejected):
		return "ValidationRejected"
	case errors.Is(err, ErrValidatorFailed):
		return "ValidationError"
	case errors.Is(err, ErrPersistence):
		return "PersistenceError"
	}
	return "Error"
}

// Options tune a single submit
type Options struct {
	// SkipValidation saves without asking the validator; used when restoring a
	// known-valid state or saving defaults
	SkipValidation bool
}

// Gate orders validation before persistence for one limit collection and
// keeps the violations of the last rejected submit.
type Gate struct {
	validator Validator
	logger    *zap.Logger

	busy       atomic.Bool
	mu         sync.Mutex
	violations []string
}

// NewGate creates a Gate
func NewGate(v Validator, logger *zap.Logger) *Gate {
	return &Gate{validator: v, logger: logger}
}

// Submit validates proposed against the schedule identified by scheduleID and
// persists it only when no violation is found. An empty scheduleID or
// opts.SkipValidation bypasses the validator.
func (g *Gate) Submit(ctx context.Context, proposed []models.DailyLimit, roster []models.Staff, scheduleID string, persist PersistFunc, opts Options) error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrValidationInProgress
	}
	defer g.busy.Store(false)

	if scheduleID == "" || opts.SkipValidation {
		g.logger.Debug("saving daily limits without validation",
			zap.Int("limits", len(proposed)),
			zap.Bool("skip", opts.SkipValidation),
		)
		return g.persist(ctx, proposed, persist)
	}

	violations, err := g.validator.Validate(ctx, scheduleID, proposed, roster)
	if err != nil {
		g.logger.Error("schedule validator failed", zap.String("schedule_id", scheduleID), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrValidatorFailed, err)
	}

	if len(violations) > 0 {
		g.setViolations(violations)
		g.logger.Info("daily limits rejected",
			zap.String("schedule_id", scheduleID),
			zap.Int("violations", len(violations)),
		)
		return &RejectedError{Violations: slices.Clone(violations)}
	}

	g.ClearViolations()
	return g.persist(ctx, proposed, persist)
}

func (g *Gate) persist(ctx context.Context, proposed []models.DailyLimit, persist PersistFunc) error {
	if err := persist(ctx, proposed); err != nil {
		g.logger.Error("saving daily limits failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Busy reports whether a submit is in flight
func (g *Gate) Busy() bool { return g.busy.Load() }

// Violations returns the violations of the last rejected submit
func (g *Gate) Violations() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.violations)
}

// ClearViolations forgets retained violations
func (g *Gate) ClearViolations() {
	g.mu.Lock()
	g.violations = nil
	g.mu.Unlock()
}

func (g *Gate) setViolations(v []string) {
	g.mu.Lock()
	g.violations = slices.Clone(v)
	g.mu.Unlock()
}
