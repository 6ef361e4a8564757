package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/users-auth-api/internal/avatar"
	"github.com/redmonkez12/users-auth-api/internal/database/dbtest"
	"github.com/redmonkez12/users-auth-api/internal/logging"
	"github.com/redmonkez12/users-auth-api/internal/user"
)

func TestService_Register(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	u, err := env.service.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1", Name: "Ann"})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", u.Email)
	assert.Equal(t, "Ann", u.Name)
	assert.False(t, u.Verify)
	assert.Equal(t, user.SubscriptionStarter, u.Subscription)
	assert.Equal(t, avatar.GravatarURL("a@x.com"), u.AvatarURL)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	require.NotNil(t, u.VerificationToken)
	assert.Equal(t, *u.VerificationToken, env.mailer.lastToken(t, "a@x.com"))
	env.mailer.AssertNumberOfCalls(t, "SendVerificationEmail", 1)
}

func TestService_RegisterWithSubscription(t *testing.T) {
	env := setupService(t)

	u, err := env.service.Register(context.Background(), RegisterInput{
		Email:        "a@x.com",
		Password:     "secret1",
		Subscription: user.SubscriptionPro,
	})
	require.NoError(t, err)
	assert.Equal(t, user.SubscriptionPro, u.Subscription)
}

func TestService_RegisterDuplicateEmail(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = env.service.Register(ctx, RegisterInput{Email: "a@x.com", Password: "other12"})
	assert.ErrorIs(t, err, ErrEmailInUse)
	env.mailer.AssertNumberOfCalls(t, "SendVerificationEmail", 1)
}

func TestService_RegisterEmailFailure(t *testing.T) {
	store := user.NewRepository(dbtest.New(t))
	tokens, err := NewJWTService(testSecret)
	require.NoError(t, err)

	mailer := &mockMailer{}
	mailer.On("SendVerificationEmail", mock.Anything, "a@x.com", mock.Anything).Return(errors.New("smtp down"))

	svc := NewService(store, NewArgon2Hasher(testArgon2Params), tokens, mailer, logging.NewNopLogger(), time.Hour)

	_, err = svc.Register(context.Background(), RegisterInput{Email: "a@x.com", Password: "secret1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmailInUse)
}

func TestService_VerifyEmail(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	u, err := env.service.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	token := env.mailer.lastToken(t, "a@x.com")

	require.NoError(t, env.service.VerifyEmail(ctx, token))

	got, err := env.store.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Verify)
	assert.Nil(t, got.VerificationToken)

	assert.ErrorIs(t, env.service.VerifyEmail(ctx, token), ErrVerificationUnknown)
	assert.ErrorIs(t, env.service.VerifyEmail(ctx, "unknown"), ErrVerificationUnknown)
	assert.ErrorIs(t, env.service.VerifyEmail(ctx, ""), ErrVerificationUnknown)
}

func TestService_ResendVerificationEmail(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	first := env.mailer.lastToken(t, "a@x.com")

	require.NoError(t, env.service.ResendVerificationEmail(ctx, "a@x.com"))
	env.mailer.AssertNumberOfCalls(t, "SendVerificationEmail", 2)
	assert.Equal(t, first, env.mailer.lastToken(t, "a@x.com"), "token must not rotate")

	assert.ErrorIs(t, env.service.ResendVerificationEmail(ctx, "missing@x.com"), ErrEmailNotFound)

	require.NoError(t, env.service.VerifyEmail(ctx, first))
	assert.ErrorIs(t, env.service.ResendVerificationEmail(ctx, "a@x.com"), ErrAlreadyVerified)
}

func TestService_LoginOrder(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.service.Login(ctx, "missing@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.service.Register(ctx, RegisterInput{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	// unverified is reported even with a wrong password
	_, err = env.service.Login(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrEmailNotVerified)

	require.NoError(t, env.service.VerifyEmail(ctx, env.mailer.lastToken(t, "a@x.com")))

	_, err = env.service.Login(ctx, "a@x.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	result, err := env.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "a@x.com", result.User.Email)

	got, err := env.store.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, got.HasToken(result.Token))
}

func TestService_LoginTokenCarriesUserAndExpiry(t *testing.T) {
	env := setupService(t)
	u := env.registerVerified(t, "a@x.com", "secret1")

	before := time.Now()
	result, err := env.service.Login(context.Background(), "a@x.com", "secret1")
	require.NoError(t, err)

	claims, err := env.tokens.VerifyToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.UserID)
	assert.WithinDuration(t, before.Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestService_SecondLoginRevokesFirst(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	env.registerVerified(t, "a@x.com", "secret1")

	first, err := env.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	second, err := env.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	_, err = env.service.Authenticate(ctx, first.Token)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	u, err := env.service.Authenticate(ctx, second.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", u.Email)
}

func TestService_Logout(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	u := env.registerVerified(t, "a@x.com", "secret1")

	result, err := env.service.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, env.service.Logout(ctx, u.ID))

	_, err = env.service.Authenticate(ctx, result.Token)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// clearing twice is fine, and so is an unknown user
	require.NoError(t, env.service.Logout(ctx, u.ID))
	require.NoError(t, env.service.Logout(ctx, uuid.New()))
}

func TestService_Authenticate(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	u := env.registerVerified(t, "a@x.com", "secret1")

	expired, err := env.tokens.CreateToken(u.ID, -time.Minute)
	require.NoError(t, err)
	require.NoError(t, env.store.SetToken(ctx, u.ID, &expired))

	unknownUser, err := env.tokens.CreateToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	otherKey, err := NewJWTService([]byte("another-secret-key"))
	require.NoError(t, err)
	forged, err := otherKey.CreateToken(u.ID, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"expired", expired},
		{"unknown user", unknownUser},
		{"wrong key", forged},
		{"valid but not stored", mustToken(t, env.tokens, u.ID)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.service.Authenticate(ctx, tc.token)
			assert.ErrorIs(t, err, ErrNotAuthorized)
		})
	}
}

func mustToken(t *testing.T, tokens TokenService, id uuid.UUID) string {
	t.Helper()
	token, err := tokens.CreateToken(id, time.Hour)
	require.NoError(t, err)
	return token
}
