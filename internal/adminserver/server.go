// Package adminserver implements the read-only admin/spectator HTTP plane
// (C9): health, metrics, recent-round history, a spectator WebSocket, and a
// multiplier-distribution summary. It never accepts a bet or cashout — the
// wire protocol in internal/wire is the only path for those — and it never
// touches clients_mtx/state_mtx directly, reading only through the round
// engine's own snapshot accessors.
package adminserver

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"crashline/internal/engine"
)

// HealthChecker is implemented by internal/cache and internal/database's
// Service types; the admin plane depends on the interface, not either
// concrete package, so it can run with either or both absent.
type HealthChecker interface {
	Health() map[string]string
}

// Server is the FiberServer-shaped admin plane, patterned on the teacher's
// own FiberServer embedding.
type Server struct {
	*fiber.App

	eng   *engine.Engine
	ring  *roundRing
	redis HealthChecker
	db    HealthChecker
}

// New builds the admin app and registers its routes. redis and db may be
// nil if those backends are not configured; Health reports them absent.
func New(eng *engine.Engine, redis, db HealthChecker) *Server {
	s := &Server{
		App: fiber.New(fiber.Config{
			ServerHeader: "crashline",
			AppName:      "crashline-admin",
		}),
		eng:   eng,
		ring:  newRoundRing(64),
		redis: redis,
		db:    db,
	}
	s.registerRoutes()
	return s
}

// Sink returns the engine.EventSink this server feeds its ring buffer and
// spectator WebSocket from. Pass it into engine.MultiSink alongside the
// audit sink so both observe every round and broadcast frame.
func (s *Server) Sink() engine.EventSink { return (*ringSink)(s) }

func (s *Server) registerRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,OPTIONS",
		AllowHeaders:     "Accept,Content-Type",
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)
	s.App.Get("/metrics", s.metricsHandler)
	s.App.Get("/rounds/recent", s.recentRoundsHandler)
	s.App.Get("/stats/multipliers", s.multiplierStatsHandler)
	s.App.Get("/spectate", websocket.New(s.spectateHandler))
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	health := fiber.Map{
		"status": "up",
		"engine": fiber.Map{
			"phase":    s.eng.State().Phase().String(),
			"occupied": s.eng.Table().Count(),
		},
	}
	if s.redis != nil {
		health["redis"] = s.redis.Health()
	}
	if s.db != nil {
		health["database"] = s.db.Health()
	}
	return c.JSON(health)
}
