package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	m, err := NewManager("secret", time.Hour, "wes-io-chat")
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m.now = clock.Now
	return m, clock
}

func TestNewManager_EmptySecret(t *testing.T) {
	_, err := NewManager("", time.Hour, "x")
	require.ErrorIs(t, err, ErrEmptySecret)
}

func TestGenerateAndValidate(t *testing.T) {
	req := require.New(t)
	m, clock := newTestManager(t)

	token, exp, err := m.GenerateToken("u1", "u1@example.com")
	req.NoError(err)
	req.Equal(clock.t.Add(time.Hour).Unix(), exp)

	claims, err := m.ValidateToken(token)
	req.NoError(err)
	req.Equal("u1", claims.UserID)
	req.Equal("u1@example.com", claims.Email)
}

func TestValidate_Expired(t *testing.T) {
	m, clock := newTestManager(t)
	token, _, err := m.GenerateToken("u1", "e")
	require.NoError(t, err)

	clock.t = clock.t.Add(2 * time.Hour)
	_, err = m.ValidateToken(token)
	require.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidate_WrongSecretOrGarbage(t *testing.T) {
	req := require.New(t)
	m, _ := newTestManager(t)

	other, err := NewManager("other", time.Hour, "wes-io-chat")
	req.NoError(err)
	other.now = m.now
	token, _, err := other.GenerateToken("u1", "e")
	req.NoError(err)

	_, err = m.ValidateToken(token)
	req.ErrorIs(err, ErrInvalidToken)

	_, err = m.ValidateToken("not-a-token")
	req.ErrorIs(err, ErrInvalidToken)
}

func TestValidate_RejectsNonHMAC(t *testing.T) {
	m, clock := newTestManager(t)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "wes-io-chat",
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
		UserID: "u1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevokeUserTokens(t *testing.T) {
	req := require.New(t)
	m, clock := newTestManager(t)

	old, _, err := m.GenerateToken("u1", "e")
	req.NoError(err)

	clock.t = clock.t.Add(time.Second)
	m.RevokeUserTokens("u1")

	_, err = m.ValidateToken(old)
	req.ErrorIs(err, ErrRevokedToken)

	clock.t = clock.t.Add(time.Second)
	fresh, _, err := m.GenerateToken("u1", "e")
	req.NoError(err)
	_, err = m.ValidateToken(fresh)
	req.NoError(err)
}

func TestRevokeUserTokens_SameSecondLogin(t *testing.T) {
	req := require.New(t)
	m, clock := newTestManager(t)

	// Given: a token issued just before logout, inside the same second
	clock.t = clock.t.Add(50 * time.Millisecond)
	before, _, err := m.GenerateToken("u1", "e")
	req.NoError(err)

	clock.t = clock.t.Add(50 * time.Millisecond)
	m.RevokeUserTokens("u1")

	// When: the user logs in again 300ms later
	clock.t = clock.t.Add(300 * time.Millisecond)
	after, _, err := m.GenerateToken("u1", "e")
	req.NoError(err)

	// Then: only the earlier token is revoked
	_, err = m.ValidateToken(before)
	req.ErrorIs(err, ErrRevokedToken)
	_, err = m.ValidateToken(after)
	req.NoError(err)
}

func TestCleanupExpiredRevocations(t *testing.T) {
	m, clock := newTestManager(t)
	m.RevokeUserTokens("u1")

	clock.t = clock.t.Add(2 * time.Hour)
	m.CleanupExpiredRevocations()

	m.mu.RLock()
	defer m.mu.RUnlock()
	require.Empty(t, m.revokedTokens)
}
