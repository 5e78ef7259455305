package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/config"
	"github.com/arnavshah/limits-settings-go/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newManager() *Manager {
	m := NewManager(config.AuthConfig{
		JWTSecret:       "test-secret-0123456789",
		TokenTTL:        time.Hour,
		APIMasterSecret: "master-secret",
	})
	m.cost = bcrypt.MinCost
	return m
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func TestTokenRoundTrip(t *testing.T) {
	m := newManager()

	token, expires, err := m.CreateToken("admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	other := NewManager(config.AuthConfig{JWTSecret: "another-secret-0123456"})
	_, err = other.VerifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestHMACKey(t *testing.T) {
	m := newManager()

	key := m.GenerateHMACKey("key-1")
	id, err := m.VerifyHMACKey(key)
	require.NoError(t, err)
	assert.Equal(t, "key-1", id)

	tampered := strings.Replace(key, "key-1", "key-2", 1)
	_, err = m.VerifyHMACKey(tampered)
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = m.VerifyHMACKey("no-dot")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestLoginAndAdminBootstrap(t *testing.T) {
	db := openDB(t)
	m := newManager()
	admin := config.AdminConfig{Username: "admin", Password: "s3cret"}

	require.NoError(t, m.EnsureAdminExists(db, admin, zap.NewNop()))
	require.NoError(t, m.EnsureAdminExists(db, config.AdminConfig{Username: "other", Password: "x"}, zap.NewNop()))

	var count int64
	db.Model(&database.MasterUser{}).Count(&count)
	assert.EqualValues(t, 1, count)

	token, _, err := m.Login(db, "admin", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = m.Login(db, "admin", "wrong")
	require.ErrorIs(t, err, ErrInvalidPassword)
	_, _, err = m.Login(db, "nobody", "s3cret")
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestIssueAndVerifyAPIKey(t *testing.T) {
	db := openDB(t)
	m := newManager()

	key, rec, err := m.IssueAPIKey(db, "optimizer")
	require.NoError(t, err)
	assert.NotEqual(t, key, rec.Key, "raw key is never stored")
	assert.True(t, strings.HasPrefix(key, strings.TrimSuffix(rec.KeyPreview, "...")))

	got, err := m.VerifyAPIKey(db, key)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.NotNil(t, got.LastUsed)

	require.NoError(t, db.Delete(&database.APIKey{}, rec.ID).Error)
	_, err = m.VerifyAPIKey(db, key)
	require.ErrorIs(t, err, ErrInvalidKey)
}
