package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	relayredis "campus-relay/internal/redis"
	"campus-relay/internal/services"
	relay_errors "campus-relay/pkg/errors"
	"campus-relay/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type tokenAuth map[string]uuid.UUID

func (a tokenAuth) Authenticate(token string) (uuid.UUID, error) {
	if id, ok := a[token]; ok {
		return id, nil
	}
	return uuid.Nil, relay_errors.ErrUnauthorized
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	r := gin.New()
	r.Use(AuthMiddleware(tokenAuth{"good": userID}))
	r.GET("/me", func(c *gin.Context) {
		id, ok := services.UserIDFromContext(c.Request.Context())
		require.True(t, ok)
		assert.Equal(t, userID.String(), c.Request.Context().Value(logger.UserIdKey))
		c.String(http.StatusOK, id.String())
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
		{"scheme is case insensitive", "bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, userID.String(), w.Body.String())
			} else {
				assert.Equal(t, "UNAUTHORIZED", decodeError(t, w).Code)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.Request.Context().Value(logger.RequestIdKey).(string))
	})

	t.Run("keeps caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "req-123", w.Body.String())
	})

	t.Run("generates one", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		id := w.Header().Get(RequestIDHeader)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, w.Body.String())
	})
}

func TestErrorHandlerMapsTaxonomy(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(logger.NewNop()))
	r.GET("/err/:kind", func(c *gin.Context) {
		switch c.Param("kind") {
		case "invalid":
			_ = c.Error(relay_errors.ErrEmptyText)
		case "forbidden":
			_ = c.Error(relay_errors.ErrForbidden)
		case "missing":
			_ = c.Error(relay_errors.ErrNotFound)
		case "boom":
			_ = c.Error(errors.New("pq: connection reset"))
		case "written":
			_ = c.Error(relay_errors.ErrNotFound)
			c.String(http.StatusAccepted, "already handled")
		}
	})

	tests := []struct {
		kind    string
		status  int
		code    string
		message string
	}{
		{"invalid", http.StatusBadRequest, "INVALID_INPUT", relay_errors.ErrEmptyText.Error()},
		{"forbidden", http.StatusForbidden, "FORBIDDEN", relay_errors.ErrForbidden.Error()},
		{"missing", http.StatusNotFound, "NOT_FOUND", relay_errors.ErrNotFound.Error()},
		{"boom", http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/err/"+tt.kind, nil))
			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.False(t, body.Success)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Error)
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/err/written", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "already handled", w.Body.String())
}

func rateLimitedRouter(limiter MessageLimiter, userID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.POST("/messages", func(c *gin.Context) {
		c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), userID))
		c.Next()
	}, MessageRateLimitMiddleware(limiter, logger.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func TestMessageRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := relayredis.NewRateLimiter(client, relayredis.RateLimitConfig{MessageLimit: 2, MessageWindow: time.Minute})
	r := rateLimitedRouter(limiter, uuid.New())

	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/messages", nil))
		return w
	}

	first := post()
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusCreated, post().Code)

	third := post()
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, third).Code)

	// other users have their own window
	other := rateLimitedRouter(limiter, uuid.New())
	w := httptest.NewRecorder()
	other.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/messages", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

type brokenLimiter struct{}

func (brokenLimiter) AllowMessage(context.Context, uuid.UUID) (*relayredis.RateLimitResult, error) {
	return nil, errors.New("redis: connection refused")
}

func TestMessageRateLimitFailsOpen(t *testing.T) {
	for name, limiter := range map[string]MessageLimiter{"backend down": brokenLimiter{}, "no limiter": nil} {
		t.Run(name, func(t *testing.T) {
			r := rateLimitedRouter(limiter, uuid.New())
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/messages", nil))
			assert.Equal(t, http.StatusCreated, w.Code)
			assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
		})
	}
}
