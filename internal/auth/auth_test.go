package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewService(string(hash), "test-secret")
}

func TestLoginAndValidate(t *testing.T) {
	s := newTestService(t)

	session, err := s.Login("forecaster", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "forecaster", session.Operator)
	assert.True(t, strings.HasPrefix(session.SessionID, "op_"))

	operator, err := s.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "forecaster", operator)

	_, err = s.Login("forecaster", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	s := NewService("", "test-secret")
	assert.False(t, s.Enabled())
	_, err := s.Login("forecaster", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateTokenRejects(t *testing.T) {
	s := newTestService(t)
	session, err := s.Login("forecaster", "hunter22")
	require.NoError(t, err)

	other := NewService(string(s.hash), "other-secret")
	_, err = other.ValidateToken(session.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.now = func() time.Time { return time.Now().Add(tokenTTL + time.Hour) }
	_, err = s.ValidateToken(session.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	s.now = time.Now
	forged, err := s.issueToken("forecaster", "sess-1", time.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = s.ValidateToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))
}

func echoOperator() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(OperatorFromContext(r.Context())))
	})
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestService(t)
	session, err := s.Login("forecaster", "hunter22")
	require.NoError(t, err)
	h := s.AuthMiddleware(echoOperator())

	tests := []struct {
		name   string
		header string
		query  string
		code   int
		body   string
	}{
		{"missing", "", "", http.StatusUnauthorized, ""},
		{"bad scheme", "Basic abc", "", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", "", http.StatusUnauthorized, ""},
		{"header", "Bearer " + session.Token, "", http.StatusOK, "forecaster"},
		{"query", "", "?token=" + session.Token, http.StatusOK, "forecaster"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/events"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	h := NewService("", "x").AuthMiddleware(echoOperator())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, LocalOperator, rec.Body.String())
}

func TestLoginHandler(t *testing.T) {
	h := NewHandler(newTestService(t))

	tests := []struct {
		name string
		body string
		code int
	}{
		{"ok", `{"operator":"forecaster","password":"hunter22"}`, http.StatusOK},
		{"wrong password", `{"operator":"forecaster","password":"nope"}`, http.StatusUnauthorized},
		{"missing fields", `{"operator":"forecaster"}`, http.StatusBadRequest},
		{"not json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(tt.body)))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
