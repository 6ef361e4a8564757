package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/users-auth-api/internal/database/dbtest"
	"github.com/redmonkez12/users-auth-api/internal/logging"
	"github.com/redmonkez12/users-auth-api/internal/user"
)

var testArgon2Params = Argon2Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8}

var testSecret = []byte("test-secret-key-for-jwt-signing!")

// mockMailer records verification emails
type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	args := m.Called(ctx, toEmail, token)
	return args.Error(0)
}

// lastToken returns the verification token of the most recent email sent to toEmail
func (m *mockMailer) lastToken(t *testing.T, toEmail string) string {
	t.Helper()
	for i := len(m.Calls) - 1; i >= 0; i-- {
		call := m.Calls[i]
		if call.Method == "SendVerificationEmail" && call.Arguments.String(1) == toEmail {
			return call.Arguments.String(2)
		}
	}
	t.Fatalf("no verification email sent to %s", toEmail)
	return ""
}

type testEnv struct {
	service *Service
	store   *user.Repository
	mailer  *mockMailer
	tokens  *JWTService
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	store := user.NewRepository(dbtest.New(t))
	tokens, err := NewJWTService(testSecret)
	require.NoError(t, err)

	mailer := &mockMailer{}
	mailer.On("SendVerificationEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewService(store, NewArgon2Hasher(testArgon2Params), tokens, mailer, logging.NewNopLogger(), time.Hour)
	return &testEnv{service: svc, store: store, mailer: mailer, tokens: tokens}
}

// registerVerified creates an account and completes email verification
func (e *testEnv) registerVerified(t *testing.T, email, password string) *user.User {
	t.Helper()
	ctx := context.Background()

	u, err := e.service.Register(ctx, RegisterInput{Email: email, Password: password})
	require.NoError(t, err)
	require.NoError(t, e.service.VerifyEmail(ctx, e.mailer.lastToken(t, email)))
	return u
}
