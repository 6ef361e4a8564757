package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/redmonkez12/users-auth-api/internal/httputil"
	"github.com/redmonkez12/users-auth-api/internal/logging"
	"github.com/redmonkez12/users-auth-api/internal/user"
)

// RateLimiter decides whether a client may perform another request of a kind
type RateLimiter interface {
	Allow(ctx context.Context, purpose, ip string) (bool, error)
}

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter RateLimiter
	logger      *logging.Logger
}

func NewHandler(service *Service, rateLimiter RateLimiter, logger *logging.Logger) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an unverified account. A verification link is sent to the email address.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration data"
// @Success      201 {object} RegisterResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email in use"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Server error"
// @Router       /users/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	if err := h.checkRateLimit(r, "register"); err != nil {
		return err
	}

	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return err
	}

	newUser, err := h.service.Register(r.Context(), RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		Subscription: req.Subscription,
	})
	if err != nil {
		if errors.Is(err, ErrEmailInUse) {
			return httputil.WrapError(http.StatusConflict, "Email in use", err)
		}
		return err
	}

	httputil.RespondJSON(w, RegisterResponse{Email: newUser.Email, Name: newUser.Name}, http.StatusCreated)
	return nil
}

// VerifyEmail handles the link sent in the verification email
// @Summary      Verify email address
// @Tags         users
// @Produce      json
// @Param        verificationToken path string true "Verification token"
// @Success      200 {object} httputil.MessageResponse
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      500 {object} httputil.ErrorResponse "Server error"
// @Router       /users/verify/{verificationToken} [get]
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) error {
	token := chi.URLParam(r, "verificationToken")

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		if errors.Is(err, ErrVerificationUnknown) {
			return httputil.WrapError(http.StatusNotFound, "User not found", err)
		}
		return err
	}

	httputil.RespondJSON(w, httputil.MessageResponse{Message: "Verification successful"}, http.StatusOK)
	return nil
}

// ResendVerificationEmail sends the verification link again
// @Summary      Resend verification email
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body EmailRequest true "Email address"
// @Success      200 {object} httputil.MessageResponse
// @Failure      400 {object} httputil.ErrorResponse "Email not found or already verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Server error"
// @Router       /users/verify [post]
func (h *Handler) ResendVerificationEmail(w http.ResponseWriter, r *http.Request) error {
	if err := h.checkRateLimit(r, "verify"); err != nil {
		return err
	}

	var req EmailRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return err
	}

	err := h.service.ResendVerificationEmail(r.Context(), req.Email)
	switch {
	case errors.Is(err, ErrEmailNotFound):
		return httputil.WrapError(http.StatusBadRequest, "Email not found", err)
	case errors.Is(err, ErrAlreadyVerified):
		return httputil.WrapError(http.StatusBadRequest, "Verification has already been passed", err)
	case err != nil:
		return err
	}

	httputil.RespondJSON(w, httputil.MessageResponse{Message: "Verification email sent"}, http.StatusOK)
	return nil
}

// Login handles user login
// @Summary      User login
// @Description  Issue a session token. A new login invalidates the previous token.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} LoginResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Email or password is wrong, or email not verified"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Server error"
// @Router       /users/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) error {
	if err := h.checkRateLimit(r, "login"); err != nil {
		return err
	}

	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return err
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return httputil.WrapError(http.StatusUnauthorized, "Email or password is wrong", err)
	case errors.Is(err, ErrEmailNotVerified):
		return httputil.WrapError(http.StatusUnauthorized, "Email not verified", err)
	case err != nil:
		return err
	}

	logging.GetLoggerFromContext(r.Context()).Info("user logged in", "user_id", result.User.ID)

	httputil.RespondJSON(w, LoginResponse{
		Token: result.Token,
		User:  sessionUser(result.User),
	}, http.StatusOK)
	return nil
}

// Current returns the authenticated user
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} SessionUser
// @Failure      401 {object} httputil.ErrorResponse "Not authorized"
// @Router       /users/current [get]
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) error {
	u, ok := user.FromContext(r.Context())
	if !ok {
		return httputil.NewError(http.StatusUnauthorized, notAuthorizedMessage)
	}

	httputil.RespondJSON(w, sessionUser(u), http.StatusOK)
	return nil
}

// Logout revokes the current session token
// @Summary      User logout
// @Tags         users
// @Security     BearerAuth
// @Success      200
// @Failure      401 {object} httputil.ErrorResponse "Not authorized"
// @Router       /users/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) error {
	u, ok := user.FromContext(r.Context())
	if !ok {
		return httputil.NewError(http.StatusUnauthorized, notAuthorizedMessage)
	}

	if err := h.service.Logout(r.Context(), u.ID); err != nil {
		return err
	}

	logging.GetLoggerFromContext(r.Context()).Info("user logged out", "user_id", u.ID)
	w.WriteHeader(http.StatusOK)
	return nil
}

func sessionUser(u *user.User) SessionUser {
	return SessionUser{Email: u.Email, Subscription: u.Subscription}
}

// checkRateLimit fails open when the limiter itself is unavailable
func (h *Handler) checkRateLimit(r *http.Request, purpose string) error {
	if h.rateLimiter == nil {
		return nil
	}

	ip := getClientIP(r)
	allowed, err := h.rateLimiter.Allow(r.Context(), purpose, ip)
	if err != nil {
		logging.GetLoggerFromContext(r.Context()).Error("failed to check rate limit", "purpose", purpose, "error", err.Error())
		return nil
	}
	if !allowed {
		h.logger.Warn("rate limit exceeded", "purpose", purpose, "ip", ip)
		return httputil.NewError(http.StatusTooManyRequests, "Too many requests")
	}
	return nil
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr format is "IP:port"
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
