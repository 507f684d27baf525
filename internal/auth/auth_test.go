package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	user := &domain.User{ID: "user-1", Role: domain.RoleAdmin}

	token, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, token.ID)
	assert.Equal(t, user.ID, token.SubjectID)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), token.ExpiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, token.ID, claims.ID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token.Value)
	assert.Error(t, err)
}

func TestTokenExpired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	token, err := tm.GenerateToken(&domain.User{ID: "u", Role: domain.RoleCustomer})
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParseToken(token.Value)
	assert.Error(t, err)
}

func TestMemoryRevocationStore(t *testing.T) {
	store := NewMemoryRevocationStore()
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)))
	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entries lapse with the token")
}

func TestPasswordHashing(t *testing.T) {
	hashed, err := HashPassword("password123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hashed, "password123"))
	assert.Error(t, ComparePassword(hashed, "wrong"))
}

func newAuthApp(t *testing.T) (*fiber.App, *TokenManager, *MemoryRevocationStore, *domain.User) {
	t.Helper()
	store := repository.NewMemoryStore()
	user := &domain.User{Name: "Cara", Email: "cara@example.com", PasswordHash: "x", Role: domain.RoleCustomer}
	require.NoError(t, store.Users().Create(context.Background(), user))

	tm := NewTokenManager("secret", 5)
	revocations := NewMemoryRevocationStore()
	mw := NewAuthMiddleware(tm, store.Users(), revocations)

	app := fiber.New()
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		current, err := CurrentUser(c)
		if err != nil {
			return err
		}
		return c.SendString(current.Email)
	})
	return app, tm, revocations, user
}

func TestAuthMiddleware(t *testing.T) {
	app, tm, revocations, user := newAuthApp(t)
	token, err := tm.GenerateToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.Value)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me?token="+token.Value, nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "query tokens only on websocket upgrades")

	require.NoError(t, revocations.Revoke(context.Background(), token.ID, token.ExpiresAt))
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token.Value)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
