package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arnavshah/limits-settings-go/pkg/config"
	"github.com/arnavshah/limits-settings-go/pkg/database"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var jwtAlgorithm = jwt.SigningMethodHS256

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidKey      = errors.New("invalid api key")
	ErrInvalidPassword = errors.New("invalid username or password")
)

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager issues operator tokens and optimizer API keys
type Manager struct {
	jwtSecret    []byte
	masterSecret []byte
	tokenTTL     time.Duration
	cost         int
}

// NewManager creates a Manager from the auth configuration
func NewManager(cfg config.AuthConfig) *Manager {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		jwtSecret:    []byte(cfg.JWTSecret),
		masterSecret: []byte(cfg.APIMasterSecret),
		tokenTTL:     ttl,
		cost:         bcrypt.DefaultCost,
	}
}

// HashPassword hashes a password using bcrypt
func (m *Manager) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), m.cost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CreateToken creates a new JWT token for an operator
func (m *Manager) CreateToken(username string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.tokenTTL)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	signed, err := token.SignedString(m.jwtSecret)
	return signed, expiresAt, err
}

// VerifyToken verifies a JWT token
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Login checks credentials against the master users table
func (m *Manager) Login(db *gorm.DB, username, password string) (string, time.Time, error) {
	var user database.MasterUser
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return "", time.Time{}, ErrInvalidPassword
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return "", time.Time{}, ErrInvalidPassword
	}
	return m.CreateToken(user.Username)
}

// EnsureAdminExists creates the configured admin when no master user exists yet
func (m *Manager) EnsureAdminExists(db *gorm.DB, admin config.AdminConfig, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&database.MasterUser{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := m.HashPassword(admin.Password)
	if err != nil {
		return err
	}
	user := database.MasterUser{
		Username:     admin.Username,
		PasswordHash: hash,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	logger.Info("default admin user created", zap.String("username", admin.Username))
	return nil
}

// GenerateHMACKey creates a signed API key for keyID
func (m *Manager) GenerateHMACKey(keyID string) string {
	return keyID + "." + m.sign(keyID)
}

// VerifyHMACKey validates an HMAC-signed API key and returns its key id
func (m *Manager) VerifyHMACKey(key string) (string, error) {
	keyID, sig, ok := strings.Cut(key, ".")
	if !ok || keyID == "" || strings.Contains(sig, ".") {
		return "", fmt.Errorf("%w: bad format", ErrInvalidKey)
	}
	if !hmac.Equal([]byte(sig), []byte(m.sign(keyID))) {
		return "", fmt.Errorf("%w: bad signature", ErrInvalidKey)
	}
	return keyID, nil
}

func (m *Manager) sign(keyID string) string {
	h := hmac.New(sha256.New, m.masterSecret)
	h.Write([]byte(keyID))
	return hex.EncodeToString(h.Sum(nil))
}

// Digest is what the api_keys table stores in place of the raw key
func Digest(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// IssueAPIKey creates and stores a new API key. The raw key is only returned here.
func (m *Manager) IssueAPIKey(db *gorm.DB, name string) (string, *database.APIKey, error) {
	key := m.GenerateHMACKey(uuid.NewString())
	rec := &database.APIKey{
		Key:        Digest(key),
		KeyPreview: key[:8] + "...",
		Name:       name,
	}
	if err := db.Create(rec).Error; err != nil {
		return "", nil, err
	}
	return key, rec, nil
}

// VerifyAPIKey checks the signature of key, looks it up and records its use
func (m *Manager) VerifyAPIKey(db *gorm.DB, key string) (*database.APIKey, error) {
	if _, err := m.VerifyHMACKey(key); err != nil {
		return nil, err
	}
	var apiKey database.APIKey
	if err := db.Where("key = ?", Digest(key)).First(&apiKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: revoked or unknown", ErrInvalidKey)
		}
		return nil, err
	}

	now := time.Now()
	apiKey.LastUsed = &now
	if err := db.Model(&apiKey).Update("last_used", now).Error; err != nil {
		return nil, err
	}
	return &apiKey, nil
}
