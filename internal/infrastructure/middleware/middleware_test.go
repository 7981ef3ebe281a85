package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestTokenManagerRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Minute)

	token, err := tm.Issue("operator")
	require.NoError(t, err)

	subject, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", subject)
}

func TestTokenManagerRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", time.Minute).Issue("operator")
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", time.Minute).Validate(token)
	assert.Error(t, err)
}

func TestTokenManagerRejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)
	token, err := tm.Issue("operator")
	require.NoError(t, err)

	_, err = tm.Validate(token)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Minute)
	router := newRouter(AuthMiddleware(tm))

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Token abc")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := tm.Issue("operator")
		require.NoError(t, err)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	router := newRouter(RateLimitMiddleware(1, 2))

	statuses := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:12345"
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	assert.Equal(t, http.StatusOK, statuses[0])
	assert.Equal(t, http.StatusOK, statuses[1])
	assert.Equal(t, http.StatusTooManyRequests, statuses[2], "burst exhausted")
	assert.Equal(t, http.StatusTooManyRequests, statuses[3])
}

func TestRateLimitMiddlewareSeparateClients(t *testing.T) {
	router := newRouter(RateLimitMiddleware(1, 1))

	first := httptest.NewRecorder()
	reqA := httptest.NewRequest(http.MethodGet, "/ping", nil)
	reqA.RemoteAddr = "10.0.0.1:1111"
	router.ServeHTTP(first, reqA)
	require.Equal(t, http.StatusOK, first.Code)

	// Exhausting one client's burst leaves another untouched.
	second := httptest.NewRecorder()
	reqA2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	reqA2.RemoteAddr = "10.0.0.1:1112"
	router.ServeHTTP(second, reqA2)
	require.Equal(t, http.StatusTooManyRequests, second.Code)

	third := httptest.NewRecorder()
	reqB := httptest.NewRequest(http.MethodGet, "/ping", nil)
	reqB.RemoteAddr = "10.0.0.2:2222"
	router.ServeHTTP(third, reqB)
	assert.Equal(t, http.StatusOK, third.Code)
}
