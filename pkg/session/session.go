package session

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/arnavshah/limits-settings-go/pkg/models"
)

// State is the phase of an edit session
type State int

const (
	Idle State = iota
	Editing
	Committing
	Cancelling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Committing:
		return "committing"
	case Cancelling:
		return "cancelling"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var transitions = map[State][]State{
	Idle:       {Editing},
	Editing:    {Committing, Cancelling},
	Committing: {Idle},
	Cancelling: {Idle},
}

var (
	// ErrSessionBusy is returned by Begin while another edit is open on the same collection
	ErrSessionBusy = errors.New("another edit is in progress")
	// ErrInvalidTransition means the session was driven out of order
	ErrInvalidTransition = errors.New("invalid session transition")
)

// Session tracks at most one open edit on one limit collection and keeps the
// pre-edit copy for rollback. Its state may be read concurrently; callers
// serialize the edits themselves.
type Session[C models.Config] struct {
	mu       sync.Mutex
	state    State
	activeID string
	snapshot *models.Limit[C]
}

// New returns an idle session
func New[C models.Config]() *Session[C] {
	return &Session[C]{}
}

func (s *Session[C]) move(to State) error {
	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
}

// State returns the current phase
func (s *Session[C]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns the id of the limit being edited
func (s *Session[C]) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID, s.state == Editing
}

// Snapshot returns a copy of the pre-edit limit
func (s *Session[C]) Snapshot() (models.Limit[C], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return models.Limit[C]{}, false
	}
	return s.snapshot.Clone(), true
}

// Begin opens an edit on the limit with the given id in current. It reports
// false without error when the id is not in the collection, even while
// another edit is open.
func (s *Session[C]) Begin(current []models.Limit[C], id string) (bool, error) {
	i := slices.IndexFunc(current, func(l models.Limit[C]) bool { return l.ID == id })
	if i < 0 {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return false, fmt.Errorf("%w: %s is open", ErrSessionBusy, s.activeID)
	}
	if err := s.move(Editing); err != nil {
		return false, err
	}
	snap := current[i].Clone()
	s.activeID = id
	s.snapshot = &snap
	return true, nil
}

// Commit closes the open edit and keeps the collection as it is. It reports
// whether an edit was open.
func (s *Session[C]) Commit() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Idle {
		return false, nil
	}
	if err := s.move(Committing); err != nil {
		return false, err
	}
	s.reset()
	return true, nil
}

// Cancel closes the open edit and hands the snapshot to restore, which writes
// it back over the edited limit. The session ends idle even when restore fails.
func (s *Session[C]) Cancel(restore func(models.Limit[C]) error) (bool, error) {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return false, nil
	}
	if err := s.move(Cancelling); err != nil {
		s.mu.Unlock()
		return false, err
	}
	snap := s.snapshot
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.reset()
		s.mu.Unlock()
	}()
	if snap == nil {
		return true, nil
	}
	return true, restore(snap.Clone())
}

// Abandon drops the open edit without restoring anything
func (s *Session[C]) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Session[C]) reset() {
	s.state = Idle
	s.activeID = ""
	s.snapshot = nil
}
