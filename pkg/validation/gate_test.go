package validation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/limits"
	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubValidator struct {
	violations []string
	err        error
	calls      int
	got        []models.DailyLimit
	block      chan struct{}
}

func (s *stubValidator) Validate(_ context.Context, _ string, proposed []models.DailyLimit, _ []models.Staff) ([]string, error) {
	s.calls++
	s.got = proposed
	if s.block != nil {
		<-s.block
	}
	return s.violations, s.err
}

type memStore struct {
	limits []models.DailyLimit
	err    error
}

func (m *memStore) persist(_ context.Context, l []models.DailyLimit) error {
	if m.err != nil {
		return m.err
	}
	m.limits = models.CloneLimits(l)
	return nil
}

func proposal() []models.DailyLimit {
	l := limits.NewDaily()
	l.ID = "d1"
	l.LimitConfig.MaxCount = 1
	return []models.DailyLimit{l}
}

func TestSubmitRejectedLeavesStoreUnchanged(t *testing.T) {
	v := &stubValidator{violations: []string{"Jane Doe scheduled for 2 early shifts on 2024-06-03 but limit is 1"}}
	store := &memStore{limits: []models.DailyLimit{limits.NewDaily()}}
	before := models.CloneLimits(store.limits)
	g := NewGate(v, zap.NewNop())

	err := g.Submit(context.Background(), proposal(), nil, "sched-1", store.persist, Options{})

	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorIs(t, err, ErrValidationRejected)
	assert.Equal(t, "1 issue found", err.Error())
	assert.Len(t, rejected.Violations, 1)
	assert.Equal(t, before, store.limits)
	assert.Equal(t, rejected.Violations, g.Violations())
	assert.Equal(t, "ValidationRejected", ErrorKind(err))
}

func TestSubmitAcceptedPersistsExactlyAndClearsViolations(t *testing.T) {
	v := &stubValidator{violations: []string{"old problem"}}
	store := &memStore{}
	g := NewGate(v, zap.NewNop())
	require.Error(t, g.Submit(context.Background(), proposal(), nil, "sched-1", store.persist, Options{}))
	require.NotEmpty(t, g.Violations())

	v.violations = nil
	p := proposal()
	require.NoError(t, g.Submit(context.Background(), p, nil, "sched-1", store.persist, Options{}))

	assert.Equal(t, p, store.limits)
	assert.Equal(t, p, v.got, "validator sees the full proposed list")
	assert.Empty(t, g.Violations())
}

func TestSubmitValidatorErrorAborts(t *testing.T) {
	v := &stubValidator{err: errors.New("connection refused")}
	store := &memStore{}
	g := NewGate(v, zap.NewNop())

	err := g.Submit(context.Background(), proposal(), nil, "sched-1", store.persist, Options{})
	assert.ErrorIs(t, err, ErrValidatorFailed)
	assert.Equal(t, "ValidationError", ErrorKind(err))
	assert.Nil(t, store.limits)
	assert.Empty(t, g.Violations())
}

func TestSubmitBypass(t *testing.T) {
	for name, tc := range map[string]struct {
		scheduleID string
		opts       Options
	}{
		"no schedule":     {scheduleID: "", opts: Options{}},
		"skip validation": {scheduleID: "sched-1", opts: Options{SkipValidation: true}},
	} {
		t.Run(name, func(t *testing.T) {
			v := &stubValidator{violations: []string{"would reject"}}
			store := &memStore{}
			g := NewGate(v, zap.NewNop())

			require.NoError(t, g.Submit(context.Background(), proposal(), nil, tc.scheduleID, store.persist, tc.opts))
			assert.Zero(t, v.calls)
			assert.Len(t, store.limits, 1)
		})
	}
}

func TestSubmitPersistenceError(t *testing.T) {
	g := NewGate(&stubValidator{}, zap.NewNop())
	store := &memStore{err: errors.New("disk full")}

	err := g.Submit(context.Background(), proposal(), nil, "sched-1", store.persist, Options{})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "PersistenceError", ErrorKind(err))
}

func TestSubmitWhileBusy(t *testing.T) {
	v := &stubValidator{block: make(chan struct{})}
	store := &memStore{}
	g := NewGate(v, zap.NewNop())

	done := make(chan error)
	go func() {
		done <- g.Submit(context.Background(), proposal(), nil, "sched-1", store.persist, Options{})
	}()

	require.Eventually(t, g.Busy, time.Second, time.Millisecond)
	err := g.Submit(context.Background(), proposal(), nil, "sched-1", store.persist, Options{})
	assert.ErrorIs(t, err, ErrValidationInProgress)

	close(v.block)
	require.NoError(t, <-done)
	assert.False(t, g.Busy())
}

func TestHTTPValidator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sched-1", req.ScheduleID)
		assert.Len(t, req.DailyLimits, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(validateResponse{Violations: []string{"too many early shifts"}})
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL, time.Second)
	got, err := v.Validate(context.Background(), "sched-1", proposal(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"too many early shifts"}, got)
	v.client.CloseIdleConnections()
}

func TestHTTPValidatorNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "schedule not found", http.StatusNotFound)
	}))
	defer srv.Close()

	v := NewHTTPValidator(srv.URL, time.Second)
	_, err := v.Validate(context.Background(), "missing", proposal(), nil)
	assert.ErrorContains(t, err, "404")
	v.client.CloseIdleConnections()
}
