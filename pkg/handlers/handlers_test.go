package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/auth"
	"github.com/arnavshah/limits-settings-go/pkg/config"
	"github.com/arnavshah/limits-settings-go/pkg/database"
	"github.com/arnavshah/limits-settings-go/pkg/editor"
	"github.com/arnavshah/limits-settings-go/pkg/models"
	"github.com/arnavshah/limits-settings-go/pkg/scheduler"
	"github.com/arnavshah/limits-settings-go/pkg/settings"
	"github.com/arnavshah/limits-settings-go/pkg/validation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	router *gin.Engine
	token  string
}

func earlyCap() models.DailyLimit {
	return models.DailyLimit{
		ID:            "d1",
		Name:          "Early cap",
		PenaltyWeight: 50,
		LimitConfig: models.DailyConfig{
			ShiftType:  models.ShiftEarly,
			MaxCount:   2,
			DaysOfWeek: models.AllWeekdays(),
			Targeting:  models.Targeting{Scope: models.ScopeAll, TargetIDs: []string{}},
		},
	}
}

func setup(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	store := settings.NewGormStore(db)
	roster := settings.NewGormRoster(db)
	schedules := settings.NewGormSchedules(db)

	require.NoError(t, roster.Replace(ctx, []models.Staff{
		{ID: "s1", Name: "Jane Doe", Status: "full_time"},
		{ID: "s2", Name: "John Roe", Status: "part_time"},
	}))
	require.NoError(t, schedules.Replace(ctx, models.Schedule{ID: "june-2024", Entries: []models.ScheduleEntry{
		{StaffID: "s1", Date: "2024-06-03", ShiftType: models.ShiftEarly},
		{StaffID: "s1", Date: "2024-06-03", ShiftType: models.ShiftEarly},
	}}))
	require.NoError(t, store.Write(ctx, &models.Settings{DailyLimits: []models.DailyLimit{earlyCap()}}))

	log := zap.NewNop()
	gate := validation.NewGate(scheduler.NewChecker(schedules), log)
	inbox := editor.NewInbox(20)
	ed := editor.New(store, roster, gate, inbox, log, editor.Options{ScheduleID: "june-2024"})

	am := auth.NewManager(config.AuthConfig{
		JWTSecret:       "handler-test-secret-123",
		TokenTTL:        time.Hour,
		APIMasterSecret: "master",
	})
	require.NoError(t, am.EnsureAdminExists(db, config.AdminConfig{Username: "admin", Password: "pw"}, log))

	h := &Handler{DB: db, Auth: am, Editor: ed, Inbox: inbox, Logger: log}
	r := gin.New()
	r.Use(RequestID(), Logger(log), gin.Recovery())
	h.Routes(r)

	srv := &testServer{router: r}
	rec := srv.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "admin", "password": "pw"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	srv.token = login.AccessToken
	return srv
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) op(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, method, path, body, s.token)
}

type viewBody struct {
	Settings        models.Settings         `json:"settings"`
	Editing         map[string]string       `json:"editing"`
	PendingDeletion *editor.PendingDeletion `json:"pendingDeletion"`
	Violations      []string                `json:"violations"`
}

func (s *testServer) view(t *testing.T) viewBody {
	t.Helper()
	rec := s.op(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v viewBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestOperatorRoutesRequireToken(t *testing.T) {
	s := setup(t)

	rec := s.do(t, http.MethodGet, "/api/settings", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/settings", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/admin/login", map[string]string{"username": "admin", "password": "nope"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRejectedPatchKeepsStoredLimit(t *testing.T) {
	s := setup(t)

	rec := s.op(t, http.MethodPatch, "/api/limits/daily/d1", `{"limitConfig":{"shiftType":"early","maxCount":1,"daysOfWeek":[0,1,2,3,4,5,6],"scope":"all","targetIds":[]}}`)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ValidationRejected", body.Code)
	assert.Equal(t, []string{"Jane Doe scheduled for 2 early shifts on 2024-06-03 but limit is 1"}, body.Details)

	v := s.view(t)
	require.Len(t, v.Settings.DailyLimits, 1)
	assert.Equal(t, 2, v.Settings.DailyLimits[0].LimitConfig.MaxCount)
	assert.Len(t, v.Violations, 1)

	rec = s.op(t, http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var notes struct {
		Notifications []editor.Notification `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, "1 issue found", notes.Notifications[0].Title)
}

func TestAcceptedPatchAndCommit(t *testing.T) {
	s := setup(t)

	rec := s.op(t, http.MethodPost, "/api/limits/daily/d1/edit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.op(t, http.MethodPatch, "/api/limits/daily/d1", map[string]any{"name": "Two early max", "penaltyWeight": 80})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	v := s.view(t)
	assert.Equal(t, "d1", v.Editing["daily"])
	assert.Equal(t, "Two early max", v.Settings.DailyLimits[0].Name)
	assert.Equal(t, 80, v.Settings.DailyLimits[0].PenaltyWeight)

	rec = s.op(t, http.MethodPost, "/api/limits/daily/edit/commit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, s.view(t).Editing)
}

func TestCancelRestoresAfterEdits(t *testing.T) {
	s := setup(t)

	require.Equal(t, http.StatusOK, s.op(t, http.MethodPost, "/api/limits/daily/d1/edit", nil).Code)
	require.Equal(t, http.StatusNoContent, s.op(t, http.MethodPost, "/api/limits/daily/d1/days/6", nil).Code)
	require.Equal(t, http.StatusNoContent, s.op(t, http.MethodPut, "/api/limits/daily/d1/scope", map[string]string{"scope": "individual"}).Code)
	require.Equal(t, http.StatusNoContent, s.op(t, http.MethodPost, "/api/limits/daily/d1/targets/s2", nil).Code)

	rec := s.op(t, http.MethodGet, "/api/limits/daily/d1/targets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var targets editor.Targets
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &targets))
	assert.Equal(t, "John Roe", targets.Display)
	assert.Len(t, targets.Options, 2)

	rec = s.op(t, http.MethodPost, "/api/limits/escape", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cancelled":"daily"}`, rec.Body.String())

	got := s.view(t).Settings.DailyLimits[0]
	assert.Equal(t, earlyCap().LimitConfig, got.LimitConfig)
}

func TestCreateAndTwoPhaseDelete(t *testing.T) {
	s := setup(t)

	rec := s.op(t, http.MethodPost, "/api/limits/monthly", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.MonthlyLimit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.DefaultMonthlyName, created.Name)
	assert.Contains(t, rec.Body.String(), `"maxCount":8`)

	rec = s.op(t, http.MethodDelete, "/api/limits/monthly/"+created.ID, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, created.ID, s.view(t).PendingDeletion.ID)

	rec = s.op(t, http.MethodPost, "/api/deletions/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	v := s.view(t)
	assert.Empty(t, v.Settings.MonthlyLimits)
	assert.Nil(t, v.PendingDeletion)
	assert.Empty(t, v.Editing)

	rec = s.op(t, http.MethodPost, "/api/deletions/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateWhileEditingConflicts(t *testing.T) {
	s := setup(t)

	require.Equal(t, http.StatusCreated, s.op(t, http.MethodPost, "/api/limits/daily", nil).Code)
	rec := s.op(t, http.MethodPost, "/api/limits/daily", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "SessionBusy")
	assert.Len(t, s.view(t).Settings.DailyLimits, 2)
}

func TestBadRequests(t *testing.T) {
	s := setup(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown kind", http.MethodPost, "/api/limits/weekly", nil, http.StatusBadRequest},
		{"unknown shift type", http.MethodPatch, "/api/limits/daily/d1", `{"limitConfig":{"shiftType":"night","maxCount":1,"scope":"all"}}`, http.StatusBadRequest},
		{"weight out of range", http.MethodPatch, "/api/limits/daily/d1", `{"penaltyWeight":0}`, http.StatusUnprocessableEntity},
		{"day on monthly", http.MethodPost, "/api/limits/monthly/d1/days/1", nil, http.StatusBadRequest},
		{"day not a number", http.MethodPost, "/api/limits/daily/d1/days/mon", nil, http.StatusBadRequest},
		{"day out of range", http.MethodPost, "/api/limits/daily/d1/days/7", nil, http.StatusUnprocessableEntity},
		{"unknown limit", http.MethodPatch, "/api/limits/daily/zzz", `{"name":"x"}`, http.StatusNotFound},
		{"unknown scope", http.MethodPut, "/api/limits/daily/d1/scope", `{"scope":"team"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.op(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestOptimizerReadsSettingsWithAPIKey(t *testing.T) {
	s := setup(t)

	rec := s.op(t, http.MethodPost, "/admin/keys", map[string]string{"name": "optimizer"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var issued struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

	rec = s.do(t, http.MethodGet, "/api/v1/settings", nil, s.token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "operator tokens are not API keys")

	rec = s.do(t, http.MethodGet, "/api/v1/settings", nil, issued.Key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var doc models.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Len(t, doc.DailyLimits, 1)

	rec = s.do(t, http.MethodGet, "/api/v1/usage", nil, issued.Key)
	require.Equal(t, http.StatusOK, rec.Code)
	var usage struct {
		Totals struct {
			Requests     int `json:"requests"`
			LimitsServed int `json:"limits_served"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &usage))
	assert.Equal(t, 1, usage.Totals.Requests)
	assert.Equal(t, 1, usage.Totals.LimitsServed)

	rec = s.op(t, http.MethodGet, "/admin/keys", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), issued.Key)
}
