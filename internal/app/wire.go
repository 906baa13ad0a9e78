package app

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/retroarcade/hiscore/internal/auth"
	"github.com/retroarcade/hiscore/internal/feed"
	"github.com/retroarcade/hiscore/internal/guard"
	"github.com/retroarcade/hiscore/internal/handler"
	adminhandler "github.com/retroarcade/hiscore/internal/handler/admin"
	"github.com/retroarcade/hiscore/internal/infra"
	"github.com/retroarcade/hiscore/internal/service"
)

// Services bundles the application services the router exposes.
type Services struct {
	Submissions  *service.SubmissionService
	Verification *service.VerificationService
	Players      *service.PlayerService
	Catalog      *service.CatalogService
	Offers       *service.OfferService
	Settings     *service.SettingsService
	Moderation   *service.ModerationService
	AdminAuth    *service.AdminAuthService
	Leaderboard  *service.LeaderboardService
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	DB            infra.Pinger
	JWTMgr        *auth.JWTManager
	Broker        *feed.Broker
	SubmitLimiter *guard.RateLimiter
	LoginLimiter  *guard.RateLimiter
	// TrustProxyHeaders takes the client address from X-Forwarded-For and
	// X-Real-IP. Enable only behind a proxy that overwrites them.
	TrustProxyHeaders bool
	Services          Services
	AllowedOrigins    []string
	MaxImageBytes     int64
	Logger            *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	svc := deps.Services

	// Public handlers
	authHandler := handler.NewAuthHandler(svc.AdminAuth)
	playerHandler := handler.NewPlayerHandler(svc.Players)
	gameHandler := handler.NewGameHandler(svc.Catalog)
	submissionHandler := handler.NewSubmissionHandler(svc.Submissions, deps.MaxImageBytes, logger)
	leaderboardHandler := handler.NewLeaderboardHandler(svc.Leaderboard, deps.Broker, deps.AllowedOrigins, logger)
	offerHandler := handler.NewOfferHandler(svc.Offers)
	mediaHandler := handler.NewMediaHandler(svc.Settings)

	// Admin handlers
	gameAdmin := adminhandler.NewGameAdminHandler(svc.Catalog)
	offerAdmin := adminhandler.NewOfferAdminHandler(svc.Offers)
	settingsAdmin := adminhandler.NewSettingsAdminHandler(svc.Settings)
	playerAdmin := adminhandler.NewPlayerAdminHandler(svc.Players)
	submissionAdmin := adminhandler.NewSubmissionAdminHandler(svc.Moderation, svc.Verification, logger)

	r := chi.NewRouter()

	// Global middleware (order matters)
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.AllowedOrigins...))

	// The live leaderboard speaks websocket, not JSON.
	r.Get("/leaderboard/live", leaderboardHandler.Live)

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Get("/health", handler.HealthHandler(deps.DB))

		r.With(handler.RateLimit(deps.LoginLimiter, logger)).Post("/auth/admin/login", authHandler.AdminLogin)

		r.Route("/players", func(r chi.Router) {
			r.Get("/", playerHandler.List)
			r.Post("/", playerHandler.Register)
			r.Get("/{id}/submissions", playerHandler.Submissions)
		})

		r.Get("/games", gameHandler.List)
		r.Get("/leaderboard", leaderboardHandler.Get)
		r.Get("/offers", offerHandler.List)
		r.Get("/media", mediaHandler.Get)

		r.With(handler.RateLimit(deps.SubmitLimiter, logger)).Post("/submissions", submissionHandler.Submit)

		// Admin-authenticated routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(deps.JWTMgr, svc.AdminAuth, logger))

			r.Route("/games", func(r chi.Router) {
				r.Get("/", gameAdmin.List)
				r.Post("/", gameAdmin.Create)
				r.Patch("/{id}", gameAdmin.Update)
				r.Delete("/{id}", gameAdmin.Delete)
			})

			r.Route("/offers", func(r chi.Router) {
				r.Get("/", offerAdmin.List)
				r.Post("/", offerAdmin.Create)
				r.Put("/{id}", offerAdmin.Update)
				r.Delete("/{id}", offerAdmin.Delete)
			})

			r.Get("/settings", settingsAdmin.Get)
			r.Put("/settings", settingsAdmin.Update)

			r.Route("/players", func(r chi.Router) {
				r.Get("/", playerAdmin.List)
				r.Put("/{id}", playerAdmin.Update)
				r.Delete("/{id}", playerAdmin.Delete)
			})

			r.Route("/submissions", func(r chi.Router) {
				r.Get("/", submissionAdmin.List)
				r.Patch("/{id}/status", submissionAdmin.SetStatus)
				r.Patch("/{id}/score", submissionAdmin.EditScore)
				r.Delete("/{id}", submissionAdmin.Delete)
				r.Post("/{id}/verify", submissionAdmin.Verify)
			})
		})
	})

	return r
}
