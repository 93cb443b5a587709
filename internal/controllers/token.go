package controllers

import (
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	webhookTokenKey    = "webhook_token"
	webhookTokenPrefix = "unmonitarr-"
)

// TokenManager owns the shared secret webhook callers must present
type TokenManager struct {
	db     *models.Database
	logger *logrus.Logger

	mu    sync.RWMutex
	token string
}

// NewTokenManager loads the persisted token. On first start it stores seed,
// or a generated token when seed is empty.
func NewTokenManager(db *models.Database, seed string, logger *logrus.Logger) (*TokenManager, error) {
	m := &TokenManager{db: db, logger: logger}

	token, err := db.GetSetting(webhookTokenKey)
	switch {
	case err == nil && token != "":
		m.token = token
		return m, nil
	case err != nil && !models.IsNotFound(err):
		return nil, fmt.Errorf("failed to load webhook token: %w", err)
	}

	if seed == "" {
		seed = GenerateToken()
		logger.Info("Generated new webhook token")
	}
	if err := m.store(seed); err != nil {
		return nil, err
	}
	return m, nil
}

// GenerateToken returns a new random webhook token
func GenerateToken() string {
	return webhookTokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Token returns the current token
func (m *TokenManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Rotate replaces the token. The old one stops working immediately.
func (m *TokenManager) Rotate() (string, error) {
	token := GenerateToken()
	if err := m.store(token); err != nil {
		return "", err
	}
	m.logger.Info("Webhook token rotated")
	return token, nil
}

// Validate compares candidate with the current token in constant time
func (m *TokenManager) Validate(candidate string) bool {
	current := m.Token()
	if current == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(current)) == 1
}

// ValidateAuthorization checks an "Authorization: Bearer <token>" header value
func (m *TokenManager) ValidateAuthorization(header string) bool {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return false
	}
	return m.Validate(strings.TrimSpace(header[len(prefix):]))
}

func (m *TokenManager) store(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.db.SetSetting(webhookTokenKey, token, "Bearer token required on POST /webhook/jellyfin"); err != nil {
		return fmt.Errorf("failed to store webhook token: %w", err)
	}
	m.token = token
	return nil
}
