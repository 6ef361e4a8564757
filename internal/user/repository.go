package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/users-auth-api/internal/database"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
)

// Store is the credential store used by the auth and profile services
type Store interface {
	Create(ctx context.Context, nu NewUser) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	// MarkEmailAsVerified sets verify and clears the verification token in a
	// single update. Returns ErrNotFound when no unverified user holds token.
	MarkEmailAsVerified(ctx context.Context, token string) error
	// SetToken stores the live session token, nil clears it
	SetToken(ctx context.Context, id uuid.UUID, token *string) error
	UpdateSubscription(ctx context.Context, id uuid.UUID, sub Subscription) (*User, error)
	UpdateAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error
}

// Repository handles user data persistence
type Repository struct {
	db bun.IDB
}

func NewRepository(db bun.IDB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, nu NewUser) (*User, error) {
	now := time.Now().UTC()
	sub := nu.Subscription
	if sub == "" {
		sub = SubscriptionStarter
	}

	verificationToken := nu.VerificationToken
	dbUser := &database.User{
		ID:                uuid.New(),
		Email:             nu.Email,
		PasswordHash:      nu.PasswordHash,
		Name:              nu.Name,
		AvatarURL:         nu.AvatarURL,
		Verify:            false,
		VerificationToken: &verificationToken,
		Subscription:      string(sub),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err := r.db.NewInsert().
		Model(dbUser).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// GetByEmail retrieves a user by email
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email = ?", email)
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetByVerificationToken retrieves a user by verification token
func (r *Repository) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return r.getOne(ctx, "verification_token = ?", token)
}

func (r *Repository) getOne(ctx context.Context, where string, arg any) (*User, error) {
	dbUser := new(database.User)
	err := r.db.NewSelect().
		Model(dbUser).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return mapDBUserToModel(dbUser), nil
}

// MarkEmailAsVerified marks the holder of token as verified and clears the token
func (r *Repository) MarkEmailAsVerified(ctx context.Context, token string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("verify = ?", true).
		Set("verification_token = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("verification_token = ?", token).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark email as verified: %w", err)
	}

	return requireRows(result)
}

// SetToken stores or clears the session token
func (r *Repository) SetToken(ctx context.Context, id uuid.UUID, token *string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("token = ?", token).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set session token: %w", err)
	}

	return requireRows(result)
}

// UpdateSubscription changes the plan and returns the updated user
func (r *Repository) UpdateSubscription(ctx context.Context, id uuid.UUID, sub Subscription) (*User, error) {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("subscription = ?", string(sub)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}

	if err := requireRows(result); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// UpdateAvatarURL changes the stored avatar path
func (r *Repository) UpdateAvatarURL(ctx context.Context, id uuid.UUID, avatarURL string) error {
	result, err := r.db.NewUpdate().
		Model((*database.User)(nil)).
		Set("avatar_url = ?", avatarURL).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}

	return requireRows(result)
}

func requireRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// isUniqueViolation matches postgres and sqlite unique constraint errors
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// mapDBUserToModel converts database model to domain model
func mapDBUserToModel(dbu *database.User) *User {
	return &User{
		ID:                dbu.ID,
		Email:             dbu.Email,
		PasswordHash:      dbu.PasswordHash,
		Name:              dbu.Name,
		AvatarURL:         dbu.AvatarURL,
		Verify:            dbu.Verify,
		VerificationToken: dbu.VerificationToken,
		Subscription:      Subscription(dbu.Subscription),
		Token:             dbu.Token,
		CreatedAt:         dbu.CreatedAt,
		UpdatedAt:         dbu.UpdatedAt,
	}
}
