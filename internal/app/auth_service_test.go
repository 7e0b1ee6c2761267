package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"janus-rag/internal/model"
	"janus-rag/internal/pkg/jwtutil"
)

func newAuthService() (*AuthService, *memUsers) {
	users := newMemUsers()
	return NewAuthService(users, "test-secret", time.Hour), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Email: "  Alice@Example.com ", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", registered.User.Email)
	assert.Equal(t, model.RoleUser, registered.User.Role)
	assert.True(t, registered.User.IsActive)
	assert.NotEqual(t, "correct-horse", registered.User.PasswordHash)

	claims, err := jwtutil.ParseToken("test-secret", registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, claims.UserID)
	assert.Equal(t, "user", claims.Role)

	loggedIn, err := svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	_, err = svc.Login(ctx, LoginInput{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "long-enough"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "A@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestLogin_InactiveUser(t *testing.T) {
	svc, users := newAuthService()
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "off@example.com", "long-enough", model.RoleUser)
	require.NoError(t, err)
	users.byID[user.ID].IsActive = false

	_, err = svc.Login(ctx, LoginInput{Email: "off@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, ErrInactiveUser)
}

func TestAuthenticate(t *testing.T) {
	svc, users := newAuthService()
	ctx := context.Background()

	result, err := svc.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "long-enough"})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", user.Email)

	// role changes apply without reissuing the token
	_, err = svc.SetRole(ctx, "bob@example.com", model.RoleAdmin)
	require.NoError(t, err)
	user, err = svc.Authenticate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, user.Role)

	users.byID[user.ID].IsActive = false
	_, err = svc.Authenticate(ctx, result.Token)
	assert.ErrorIs(t, err, ErrInactiveUser)

	delete(users.byID, user.ID)
	_, err = svc.Authenticate(ctx, result.Token)
	assert.ErrorIs(t, err, jwtutil.ErrInvalidToken)

	_, err = svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, jwtutil.ErrInvalidToken)
}
