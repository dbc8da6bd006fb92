package jwt

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrRevokedToken = errors.New("token has been revoked")
	ErrEmptySecret  = errors.New("jwt secret must not be empty")
)

// Claims represents JWT claims. IssuedAtNano keeps the sub-second issue
// time that the registered iat claim rounds away, so a token issued right
// after a logout in the same second is not caught by that revocation.
type Claims struct {
	jwt.RegisteredClaims
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	IssuedAtNano int64  `json:"iat_nano,omitempty"`
}

// Manager handles JWT operations.
type Manager struct {
	secret         []byte
	accessDuration time.Duration
	issuer         string
	now            func() time.Time

	// Revocations are keyed by user and cover tokens issued before the
	// revocation instant.
	revokedTokens map[string]time.Time
	mu            sync.RWMutex
}

// NewManager creates a new HS256 JWT manager.
func NewManager(secret string, accessDuration time.Duration, issuer string) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Manager{
		secret:         []byte(secret),
		accessDuration: accessDuration,
		issuer:         issuer,
		now:            time.Now,
		revokedTokens:  make(map[string]time.Time),
	}, nil
}

// GenerateToken issues an access token for the user and returns it with its
// expiry as unix seconds.
func (m *Manager) GenerateToken(userID, email string) (string, int64, error) {
	now := m.now()
	exp := now.Add(m.accessDuration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:       userID,
		Email:        email,
		IssuedAtNano: now.UnixNano(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", 0, err
	}
	return token, exp.Unix(), nil
}

// ValidateToken validates a token and returns claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	if m.isRevoked(claims) {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// RevokeUserTokens revokes every token issued to the user up to now.
func (m *Manager) RevokeUserTokens(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedTokens[userID] = m.now()
}

// CleanupExpiredRevocations drops revocations older than the token lifetime,
// since every token they cover has expired by then.
func (m *Manager) CleanupExpiredRevocations() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.accessDuration)
	for userID, at := range m.revokedTokens {
		if at.Before(cutoff) {
			delete(m.revokedTokens, userID)
		}
	}
}

func (m *Manager) isRevoked(claims *Claims) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.revokedTokens[claims.UserID]
	if !ok {
		return false
	}
	switch {
	case claims.IssuedAtNano > 0:
		return !time.Unix(0, claims.IssuedAtNano).After(at)
	case claims.IssuedAt != nil:
		return !claims.IssuedAt.Time.After(at)
	default:
		return true
	}
}
