package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/users-auth-api/internal/httputil"
	"github.com/redmonkez12/users-auth-api/internal/logging"
)

type stubLimiter struct {
	allowed bool
	calls   []string
}

func (s *stubLimiter) Allow(_ context.Context, purpose, ip string) (bool, error) {
	s.calls = append(s.calls, purpose+"|"+ip)
	return s.allowed, nil
}

func newTestRouter(env *testEnv, limiter RateLimiter) http.Handler {
	h := NewHandler(env.service, limiter, logging.NewNopLogger())
	mw := NewMiddleware(env.service)

	r := chi.NewRouter()
	r.Post("/register", httputil.Wrap(h.Register))
	r.Get("/verify/{verificationToken}", httputil.Wrap(h.VerifyEmail))
	r.Post("/verify", httputil.Wrap(h.ResendVerificationEmail))
	r.Post("/login", httputil.Wrap(h.Login))
	r.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth)
		r.Get("/current", httputil.Wrap(h.Current))
		r.Post("/logout", httputil.Wrap(h.Logout))
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

func TestHandler_RegisterValidation(t *testing.T) {
	env := setupService(t)
	router := newTestRouter(env, nil)

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty body", "", "missing fields"},
		{"empty object", "{}", "missing fields"},
		{"bad email", `{"email":"nope","password":"secret1"}`, "email"},
		{"short password", `{"email":"a@x.com","password":"123"}`, "password"},
		{"bad subscription", `{"email":"a@x.com","password":"secret1","subscription":"gold"}`, "subscription"},
		{"not json", `{"email":`, "invalid request body"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/register", tc.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, messageOf(t, rec), tc.wantMsg)
		})
	}
	env.mailer.AssertNotCalled(t, "SendVerificationEmail")
}

func TestHandler_RegisterAndConflict(t *testing.T) {
	env := setupService(t)
	router := newTestRouter(env, nil)

	rec := do(t, router, http.MethodPost, "/register", `{"email":"a@x.com","password":"secret1","name":"Ann"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var created RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, RegisterResponse{Email: "a@x.com", Name: "Ann"}, created)

	rec = do(t, router, http.MethodPost, "/register", `{"email":"a@x.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email in use", messageOf(t, rec))
}

func TestHandler_VerifyAndResend(t *testing.T) {
	env := setupService(t)
	router := newTestRouter(env, nil)

	rec := do(t, router, http.MethodPost, "/register", `{"email":"a@x.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	token := env.mailer.lastToken(t, "a@x.com")

	rec = do(t, router, http.MethodPost, "/verify", `{"email":"missing@x.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email not found", messageOf(t, rec))

	rec = do(t, router, http.MethodPost, "/verify", `{"email":"a@x.com"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Verification email sent", messageOf(t, rec))

	rec = do(t, router, http.MethodGet, "/verify/"+token, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Verification successful", messageOf(t, rec))

	rec = do(t, router, http.MethodGet, "/verify/"+token, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", messageOf(t, rec))

	rec = do(t, router, http.MethodPost, "/verify", `{"email":"a@x.com"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Verification has already been passed", messageOf(t, rec))
}

func TestHandler_LoginCurrentLogout(t *testing.T) {
	env := setupService(t)
	router := newTestRouter(env, nil)

	rec := do(t, router, http.MethodPost, "/register", `{"email":"a@x.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, "/login", `{"email":"a@x.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Email not verified", messageOf(t, rec))

	require.NoError(t, env.service.VerifyEmail(context.Background(), env.mailer.lastToken(t, "a@x.com")))

	rec = do(t, router, http.MethodPost, "/login", `{"email":"a@x.com","password":"secret9"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Email or password is wrong", messageOf(t, rec))

	rec = do(t, router, http.MethodPost, "/login", `{"email":"b@x.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Email or password is wrong", messageOf(t, rec))

	rec = do(t, router, http.MethodPost, "/login", `{"email":"a@x.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var login LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, SessionUser{Email: "a@x.com", Subscription: "starter"}, login.User)

	rec = do(t, router, http.MethodGet, "/current", "", login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var current SessionUser
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &current))
	assert.Equal(t, login.User, current)

	rec = do(t, router, http.MethodPost, "/logout", "", login.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, strings.TrimSpace(rec.Body.String()))

	rec = do(t, router, http.MethodGet, "/current", "", login.Token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized", messageOf(t, rec))
}

func TestHandler_RateLimited(t *testing.T) {
	env := setupService(t)
	limiter := &stubLimiter{allowed: false}
	router := newTestRouter(env, limiter)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"a@x.com","password":"secret1"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests", messageOf(t, rec))
	assert.Equal(t, []string{"login|203.0.113.7"}, limiter.calls)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", getClientIP(req))

	req.Header.Set("X-Real-IP", " 198.51.100.2 ")
	assert.Equal(t, "198.51.100.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", getClientIP(req))
}
