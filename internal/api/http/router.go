package http

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	Chats          *handlers.ChatsHandler
	Realtime       *handlers.RealtimeHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	// AuthLimiter throttles /register and /login per client IP. Nil disables it.
	AuthLimiter *ratelimit.Pool
	// ChatLimiter throttles chat sends per user. Nil disables it.
	ChatLimiter *ratelimit.Pool
	// StorageRoot is served under /storage when the local disk is in use.
	StorageRoot string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}
	if cfg.StorageRoot != "" {
		app.Static("/storage", cfg.StorageRoot, fiber.Static{Browse: false})
	}

	authLimit := limit(cfg.AuthLimiter, ratelimit.ByIP)
	app.Post("/register", authLimit, cfg.Users.Register)
	app.Post("/login", authLimit, cfg.Users.Login)

	protected := app.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/logout", cfg.Users.Logout)
	protected.Get("/me", cfg.Users.Me)

	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Post("/tickets", cfg.Tickets.CreateTicket)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Put("/tickets/:id", cfg.Tickets.UpdateTicket)
	protected.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	protected.Delete("/tickets/:id", cfg.Tickets.DeleteTicket)

	protected.Get("/tickets/:id/comments", cfg.Comments.ListComments)
	protected.Post("/tickets/:id/comments", cfg.Comments.CreateComment)

	protected.Get("/tickets/:id/chats", cfg.Chats.ListChats)
	protected.Post("/tickets/:id/chats", limit(cfg.ChatLimiter, byUser), cfg.Chats.SendChat)

	protected.Get("/tickets/:id/stream", cfg.Realtime.Upgrade, websocket.New(cfg.Realtime.Stream))
	protected.Post("/broadcasting/auth", cfg.Realtime.AuthorizeChannel)
}

func limit(pool *ratelimit.Pool, key ratelimit.KeyFunc) fiber.Handler {
	if pool == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return ratelimit.Middleware(pool, key)
}

func byUser(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.User != nil {
		return "user:" + principal.User.ID
	}
	return ratelimit.ByIP(c)
}
