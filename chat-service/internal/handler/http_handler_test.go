package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/domain"
	svcmocks "github.com/weiawesome/wes-io-chat/chat-service/internal/service/mocks"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/response"
)

type apiFixture struct {
	auth     *svcmocks.MockAuthService
	users    *svcmocks.MockUserService
	groups   *svcmocks.MockGroupService
	messages *svcmocks.MockMessageService
	tokens   *svcmocks.MockTokenManager
	engine   *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	f := &apiFixture{
		auth:     svcmocks.NewMockAuthService(ctrl),
		users:    svcmocks.NewMockUserService(ctrl),
		groups:   svcmocks.NewMockGroupService(ctrl),
		messages: svcmocks.NewMockMessageService(ctrl),
		tokens:   svcmocks.NewMockTokenManager(ctrl),
		engine:   gin.New(),
	}
	f.tokens.EXPECT().ValidateToken("good").Return(&jwt.Claims{UserID: "me", Email: "me@example.com"}, nil).AnyTimes()
	NewHandler(f.auth, f.users, f.groups, f.messages, middleware.NewAuthMiddleware(f.tokens)).RegisterRoutes(f.engine)
	return f
}

func (f *apiFixture) do(method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer good")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandler_Signup(t *testing.T) {
	t.Run("invalid body", func(t *testing.T) {
		f := newAPIFixture(t)

		w := f.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{"email": "not-an-email"}, false)

		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate", func(t *testing.T) {
		req := require.New(t)
		f := newAPIFixture(t)
		f.auth.EXPECT().Signup(gomock.Any(), gomock.Any()).Return(nil, domain.NewConflictError("email already registered", nil))

		w := f.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
			"email": "a@example.com", "password": "password123", "name": "A", "username": "alice",
		}, false)

		req.Equal(http.StatusConflict, w.Code)
		resp := decodeBody(t, w)
		req.False(resp.Success)
		req.Equal("CONFLICT", resp.Error.Code)
		req.Equal("email already registered", resp.Error.Message)
	})

	t.Run("created", func(t *testing.T) {
		f := newAPIFixture(t)
		f.auth.EXPECT().Signup(gomock.Any(), gomock.Any()).Return(&domain.AuthResponse{Token: "tok"}, nil)

		w := f.do(http.MethodPost, "/api/v1/auth/signup", map[string]string{
			"email": "a@example.com", "password": "password123", "name": "A", "username": "alice",
		}, false)

		require.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestHandler_Login_InvalidCredentials(t *testing.T) {
	f := newAPIFixture(t)
	f.auth.EXPECT().Login(gomock.Any(), gomock.Any()).Return(nil, domain.NewAuthError("invalid email or password", nil))

	w := f.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "a@example.com", "password": "x"}, false)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_RequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/v1/users", nil, false)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_ListUsers(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	n := 2
	f.users.EXPECT().ListUsers(gomock.Any(), "me").Return([]domain.UserResponse{{ID: "a", UnreadCount: &n}}, nil)

	w := f.do(http.MethodGet, "/api/v1/users", nil, true)

	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), `"unread_count":2`)
}

func TestHandler_GetMe(t *testing.T) {
	f := newAPIFixture(t)
	f.users.EXPECT().GetUser(gomock.Any(), "me").Return(&domain.UserResponse{ID: "me"}, nil)

	w := f.do(http.MethodGet, "/api/v1/users/me", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_GroupErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"forbidden", domain.NewForbiddenError("you are not a member of this group"), http.StatusForbidden},
		{"not found", domain.NewNotFoundError("group not found"), http.StatusNotFound},
		{"persistence", domain.NewPersistenceError("failed to load group", errors.New("db down")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newAPIFixture(t)
			f.groups.EXPECT().GetGroup(gomock.Any(), "me", "g-1").Return(nil, tt.err)

			w := f.do(http.MethodGet, "/api/v1/groups/g-1", nil, true)

			req.Equal(tt.code, w.Code)
			req.NotContains(w.Body.String(), "db down")
		})
	}
}

func TestHandler_RemoveMember(t *testing.T) {
	f := newAPIFixture(t)
	f.groups.EXPECT().RemoveMember(gomock.Any(), "me", "g-1", "u-2").Return(&domain.GroupResponse{Group: &domain.Group{ID: "g-1"}}, nil)

	w := f.do(http.MethodDelete, "/api/v1/groups/g-1/members/u-2", nil, true)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_DirectHistory(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	f.messages.EXPECT().DirectHistory(gomock.Any(), "me", "u-2", 2, 10).Return(&domain.MessagePage{
		Messages: []*domain.Message{{ID: "m-1"}},
		Page:     2,
		Limit:    10,
		Total:    11,
	}, nil)

	w := f.do(http.MethodGet, "/api/v1/messages/direct/u-2?page=2&limit=10", nil, true)

	req.Equal(http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	req.True(resp.Success)
	req.Equal(&response.PageMeta{Page: 2, Limit: 10, Count: 11}, resp.Meta)
}

func TestHandler_UnreadAndMarkRead(t *testing.T) {
	req := require.New(t)
	f := newAPIFixture(t)
	f.messages.EXPECT().UnreadCounts(gomock.Any(), "me").Return(domain.UnreadCounts{"a": 3}, nil)
	f.messages.EXPECT().MarkRead(gomock.Any(), "me", "a").Return(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	w := f.do(http.MethodGet, "/api/v1/messages/unread", nil, true)
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), `"a":3`)

	w = f.do(http.MethodPost, "/api/v1/messages/read/a", nil, true)
	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), `"last_read_at":"2024-01-01T00:00:00Z"`)
}
