package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestPoolBurstPerKey(t *testing.T) {
	pool := NewPool(1, 2)
	frozen := time.Now()
	pool.now = func() time.Time { return frozen }

	assert.True(t, pool.Allow("a"))
	assert.True(t, pool.Allow("a"))
	assert.False(t, pool.Allow("a"))
	assert.True(t, pool.Allow("b"), "keys are independent")

	frozen = frozen.Add(time.Second)
	assert.True(t, pool.Allow("a"), "refills over time")
}

func TestPoolEvictsIdleBuckets(t *testing.T) {
	pool := NewPool(1, 1)
	frozen := time.Now()
	pool.now = func() time.Time { return frozen }

	pool.Allow("a")
	frozen = frozen.Add(2 * defaultIdleTTL)
	pool.Allow("b")

	pool.mu.Lock()
	defer pool.mu.Unlock()
	assert.NotContains(t, pool.m, "a")
	assert.Contains(t, pool.m, "b")
}

func TestMiddlewareReturnsRateLimited(t *testing.T) {
	pool := NewPool(0.001, 1)
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	app.Get("/", Middleware(pool, func(*fiber.Ctx) string { return "same" }), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
