package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	h(c)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestPaginated(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { Paginated(c, []string{"a"}, 2, 10, 1) })
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, body.Success)
	require.Equal(t, &PageMeta{Page: 2, Limit: 10, Count: 1}, body.Meta)
}

func TestErrorHelpers(t *testing.T) {
	cases := []struct {
		fn     func(*gin.Context, string)
		status int
		code   string
	}{
		{BadRequest, http.StatusBadRequest, "BAD_REQUEST"},
		{Unauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{Forbidden, http.StatusForbidden, "FORBIDDEN"},
		{NotFound, http.StatusNotFound, "NOT_FOUND"},
		{Conflict, http.StatusConflict, "CONFLICT"},
		{InternalError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		w, body := serve(t, func(c *gin.Context) { tc.fn(c, "boom") })
		require.Equal(t, tc.status, w.Code)
		require.False(t, body.Success)
		require.Equal(t, tc.code, body.Error.Code)
		require.Equal(t, "boom", body.Error.Message)
	}
}
