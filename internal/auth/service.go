package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redmonkez12/users-auth-api/internal/avatar"
	"github.com/redmonkez12/users-auth-api/internal/logging"
	"github.com/redmonkez12/users-auth-api/internal/user"
)

var (
	ErrEmailInUse          = errors.New("email in use")
	ErrVerificationUnknown = errors.New("verification token not found")
	ErrEmailNotFound       = errors.New("email not found")
	ErrAlreadyVerified     = errors.New("email already verified")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrNotAuthorized       = errors.New("not authorized")
)

// RegisterInput is the data accepted at registration
type RegisterInput struct {
	Email        string
	Password     string
	Name         string
	Subscription user.Subscription
}

// LoginResult is a freshly issued session
type LoginResult struct {
	Token string
	User  *user.User
}

// Service owns the account state machine: registration, email verification,
// login and logout. A user has at most one live session token, the one
// stored on the user record.
type Service struct {
	users    user.Store
	hasher   PasswordHasher
	tokens   TokenService
	mailer   EmailService
	logger   *logging.Logger
	tokenTTL time.Duration
}

func NewService(
	users user.Store,
	hasher PasswordHasher,
	tokens TokenService,
	mailer EmailService,
	logger *logging.Logger,
	tokenTTL time.Duration,
) *Service {
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		logger:   logger,
		tokenTTL: tokenTTL,
	}
}

// Register creates an unverified account and sends the verification email
func (s *Service) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, ErrEmailInUse
	case !errors.Is(err, user.ErrNotFound):
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verificationToken, err := generateRandomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.NewUser{
		Email:             in.Email,
		PasswordHash:      passwordHash,
		Name:              in.Name,
		AvatarURL:         avatar.GravatarURL(in.Email),
		Subscription:      in.Subscription,
		VerificationToken: verificationToken,
	})
	if err != nil {
		if errors.Is(err, user.ErrDuplicateEmail) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, newUser.Email, verificationToken); err != nil {
		return nil, fmt.Errorf("failed to send verification email: %w", err)
	}

	s.logger.Info("user registered", "user_id", newUser.ID)
	return newUser, nil
}

// VerifyEmail confirms the account holding token. The token is cleared in the
// same update, so it can be used only once.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrVerificationUnknown
	}

	if err := s.users.MarkEmailAsVerified(ctx, token); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrVerificationUnknown
		}
		return fmt.Errorf("failed to verify email: %w", err)
	}

	return nil
}

// ResendVerificationEmail sends the existing verification link again. The
// token is not rotated so earlier links stay valid.
func (s *Service) ResendVerificationEmail(ctx context.Context, email string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrEmailNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if existing.Verify || existing.VerificationToken == nil {
		return ErrAlreadyVerified
	}

	if err := s.mailer.SendVerificationEmail(ctx, existing.Email, *existing.VerificationToken); err != nil {
		return fmt.Errorf("failed to resend verification email: %w", err)
	}

	return nil
}

// Login checks, in order, that the user exists, is verified and knows the
// password, then issues a token that replaces any previous session.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !existing.Verify {
		return nil, ErrEmailNotVerified
	}

	if !s.hasher.Verify(existing.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.CreateToken(existing.ID, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}

	if err := s.users.SetToken(ctx, existing.ID, &token); err != nil {
		return nil, fmt.Errorf("failed to store session token: %w", err)
	}
	existing.Token = &token

	return &LoginResult{Token: token, User: existing}, nil
}

// Logout clears the session token. Clearing an already cleared session is not an error.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.SetToken(ctx, userID, nil); err != nil && !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("failed to clear session token: %w", err)
	}
	return nil
}

// Authenticate resolves the user behind a bearer token. The token must verify
// and must also be the one currently stored for the user.
func (s *Service) Authenticate(ctx context.Context, token string) (*user.User, error) {
	claims, err := s.tokens.VerifyToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id in token", ErrNotAuthorized)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", ErrNotAuthorized)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !u.HasToken(token) {
		return nil, fmt.Errorf("%w: session revoked", ErrNotAuthorized)
	}

	return u, nil
}
