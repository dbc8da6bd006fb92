package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
)

func newRouter(t *testing.T) (*gin.Engine, *jwt.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := jwt.NewManager("secret", time.Hour, "test")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", NewAuthMiddleware(m).RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUserID(c)+"|"+GetEmail(c))
	})
	return r, m
}

func TestRequireAuth_ValidToken(t *testing.T) {
	req := require.New(t)
	r, m := newRouter(t)

	token, _, err := m.GenerateToken("u1", "u1@example.com")
	req.NoError(err)

	w := httptest.NewRecorder()
	httpReq := httptest.NewRequest(http.MethodGet, "/me", nil)
	httpReq.Header.Set(AuthHeaderKey, BearerPrefix+token)
	r.ServeHTTP(w, httpReq)

	req.Equal(http.StatusOK, w.Code)
	req.Equal("u1|u1@example.com", w.Body.String())
}

func TestRequireAuth_Rejects(t *testing.T) {
	r, _ := newRouter(t)

	for name, header := range map[string]string{
		"missing":   "",
		"no bearer": "Token abc",
		"empty":     "Bearer ",
		"garbage":   "Bearer abc",
	} {
		w := httptest.NewRecorder()
		httpReq := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			httpReq.Header.Set(AuthHeaderKey, header)
		}
		r.ServeHTTP(w, httpReq)
		require.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer  abc ")
	require.NoError(t, err)
	require.Equal(t, "abc", token)
}
