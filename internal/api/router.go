package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/saturnino-fabrica-de-software/ponto/internal/api/docs"
	"github.com/saturnino-fabrica-de-software/ponto/internal/api/handler"
	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
	"github.com/saturnino-fabrica-de-software/ponto/internal/database"
	"github.com/saturnino-fabrica-de-software/ponto/internal/verification"
	"github.com/saturnino-fabrica-de-software/ponto/internal/ws"
)

type Dependencies struct {
	Sessions      handler.SessionManager
	Attendance    handler.PunchService
	Hub           *ws.Hub
	DB            database.Pinger
	GateKeyHashes []string
	// FrameRate caps pushed frames per second per session, over HTTP and WebSocket.
	FrameRate     float64
	SessionCount  func() int
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
	cancelHub   context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Ponto Gate",
		BodyLimit:    4 * 1024 * 1024,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Swagger documentation (no auth required)
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	var (
		db       database.Pinger
		sessions func() int
	)
	if r.deps != nil {
		db = r.deps.DB
		sessions = r.deps.SessionCount
	}

	// Health check endpoints (no auth required)
	healthHandler := handler.NewHealthHandler(db, sessions)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	// Only configure gate routes if dependencies were provided
	if r.deps == nil {
		return
	}

	v1 := r.app.Group("/v1")
	v1.Use(middleware.GateAuth(middleware.NewKeySet(r.deps.GateKeyHashes)))

	// Rate limiting (per gate key) - must come after auth to have the key id
	r.rateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	v1.Use(r.rateLimiter.Handler())

	if r.deps.Sessions != nil {
		var frames *handler.FrameLimiter
		if r.deps.FrameRate > 0 {
			frames = handler.NewFrameLimiter(r.deps.FrameRate, 1)
		}
		sessionHandler := handler.NewSessionHandler(r.deps.Sessions, frames, r.logger)

		v1.Post("/sessions", sessionHandler.Open)
		v1.Get("/sessions/:id", sessionHandler.Get)
		v1.Delete("/sessions/:id", sessionHandler.Close)
		v1.Post("/sessions/:id/frames", sessionHandler.PushFrame)

		if r.deps.Hub != nil {
			hubCtx, hubCancel := context.WithCancel(context.Background())
			r.cancelHub = hubCancel
			go r.deps.Hub.Run(hubCtx)

			v1.Get("/sessions/:id/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub, r.deps.Sessions, ws.HandlerConfig{
				FrameRate: r.deps.FrameRate,
				Logger:    r.logger,
			}))
		}
	}

	if r.deps.Attendance != nil {
		attendanceHandler := handler.NewAttendanceHandler(r.deps.Attendance, r.logger)

		v1.Post("/checkin", attendanceHandler.Checkin)
		v1.Post("/checkout", attendanceHandler.Checkout)
	}
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// Stop WebSocket hub
	if r.cancelHub != nil {
		r.cancelHub()
	}

	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}

// managerSessions exposes a verification manager as the HTTP session API.
type managerSessions struct {
	*verification.Manager
}

// NewSessions adapts m for Dependencies.Sessions.
func NewSessions(m *verification.Manager) handler.SessionManager {
	return managerSessions{Manager: m}
}

func (s managerSessions) Open(req verification.OpenRequest) (verification.Snapshot, error) {
	session, err := s.Manager.Open(req)
	if err != nil {
		return verification.Snapshot{}, err
	}
	return session.Snapshot(), nil
}
