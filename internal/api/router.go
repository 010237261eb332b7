package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/promptvexity/internal/api/handlers"
	"github.com/nikhilbhutani/promptvexity/internal/api/middleware"
	"github.com/nikhilbhutani/promptvexity/internal/audit"
	"github.com/nikhilbhutani/promptvexity/internal/auth"
	"github.com/nikhilbhutani/promptvexity/internal/authz"
	"github.com/nikhilbhutani/promptvexity/internal/cache"
	"github.com/nikhilbhutani/promptvexity/internal/config"
	"github.com/nikhilbhutani/promptvexity/internal/lineage"
	"github.com/nikhilbhutani/promptvexity/internal/metrics"
	"github.com/nikhilbhutani/promptvexity/internal/moderation"
	"github.com/nikhilbhutani/promptvexity/internal/problem"
	"github.com/nikhilbhutani/promptvexity/internal/prompt"
	"github.com/nikhilbhutani/promptvexity/internal/queue"
	"github.com/nikhilbhutani/promptvexity/internal/rank"
	"github.com/nikhilbhutani/promptvexity/internal/review"
	"github.com/nikhilbhutani/promptvexity/internal/store"
	"github.com/nikhilbhutani/promptvexity/internal/vote"
	"github.com/nikhilbhutani/promptvexity/internal/workspace"
)

const cachePrefix = "promptvexity:"

type Router struct {
	mux      *chi.Mux
	store    store.Store
	redis    *redis.Client
	queue    *queue.Client
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	jwt      *auth.JWTMiddleware
	limiter  *middleware.RateLimiter
}

// NewRouter wires the API. rdb and qc may be nil: rank views are then
// recomputed on every read and analytics events are written inline.
func NewRouter(st store.Store, rdb *redis.Client, qc *queue.Client, cfg *config.Config, reg *prometheus.Registry) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		store:    st,
		redis:    rdb,
		queue:    qc,
		cfg:      cfg,
		registry: reg,
		metrics:  metrics.New(reg),
		jwt:      auth.NewJWTMiddleware(cfg.Auth.JWTSecret, st),
		limiter:  middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
}

// Close stops background work started by the router.
func (rt *Router) Close() {
	rt.limiter.Stop()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics(rt.metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	// Health endpoints (no auth, no rate limit)
	health := handlers.NewHealthHandler(rt.store, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))

	// Initialize services
	var viewCache rank.ViewCache
	if rt.redis != nil {
		viewCache = cache.NewCache(rt.redis, cachePrefix)
	}
	var (
		events prompt.EventRecorder      = queue.NewInline(rt.store)
		stats  handlers.StatsRecomputer = queue.NewInline(rt.store)
	)
	// The worker never sees a process-local store, so its events stay inline.
	if _, local := rt.store.(*store.MemoryStore); rt.queue != nil && !local {
		events, stats = rt.queue, rt.queue
	}

	gate := authz.NewGate(rt.store)
	auditSvc := audit.NewService(rt.store)
	resolver := lineage.NewResolver(rt.store)
	views := rank.NewViews(rt.store, viewCache, rt.cfg.Rank.CacheTTL, rt.metrics)
	workspaceSvc := workspace.NewService(rt.store, gate, auditSvc)
	problemSvc := problem.NewService(rt.store, gate, workspaceSvc, views, auditSvc)
	promptSvc := prompt.NewService(prompt.Deps{
		Store:      rt.store,
		Gate:       gate,
		Lineage:    resolver,
		Workspaces: workspaceSvc,
		Views:      views,
		Events:     events,
		Audit:      auditSvc,
		Metrics:    rt.metrics,
	})
	voteSvc := vote.NewService(rt.store, gate, views, rt.metrics)
	reviewSvc := review.NewService(rt.store, gate)
	moderationSvc := moderation.NewService(rt.store, gate, auditSvc, views, rt.metrics)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.limiter.Limit)
		r.Use(rt.jwt.Authenticate)

		// Problem routes
		problemH := handlers.NewProblemHandler(problemSvc, promptSvc)
		r.Route("/problems", func(r chi.Router) {
			r.Get("/", problemH.List)
			r.Post("/", problemH.Create)
			r.Get("/{id}", problemH.Get)
			r.Patch("/{id}", problemH.Update)
			r.Get("/{id}/prompts", problemH.ListPrompts)
			r.Get("/{id}/members", problemH.ListMembers)
			r.Post("/{id}/members", problemH.AddMember)
			r.Delete("/{id}/members/{userID}", problemH.RemoveMember)
		})

		// Prompt routes
		promptH := handlers.NewPromptHandler(promptSvc, resolver, voteSvc, reviewSvc)
		r.Route("/prompts", func(r chi.Router) {
			r.Post("/", promptH.Create)
			r.Get("/{id}", promptH.Get)
			r.Patch("/{id}", promptH.Update)
			r.Delete("/{id}", promptH.Delete)
			r.Post("/{id}/fork", promptH.Fork)
			r.Get("/{id}/lineage", promptH.Lineage)
			r.Get("/{id}/children", promptH.Children)
			r.Get("/{id}/vote", promptH.GetVote)
			r.Put("/{id}/vote", promptH.CastVote)
			r.Delete("/{id}/vote", promptH.ClearVote)
			r.Get("/{id}/reviews", promptH.ListReviews)
			r.Post("/{id}/reviews", promptH.CreateReview)
			r.Post("/{id}/render", promptH.Render)
			r.Post("/{id}/copy", promptH.Copy)
			r.Put("/{id}/hidden", promptH.SetHidden)
		})

		// Rank routes
		rankH := handlers.NewRankHandler(views)
		r.Route("/rank", func(r chi.Router) {
			r.Get("/prompts", rankH.Prompts)
			r.Get("/problems", rankH.Problems)
		})

		// Workspace routes
		workspaceH := handlers.NewWorkspaceHandler(workspaceSvc)
		r.Route("/workspaces", func(r chi.Router) {
			r.Get("/me", workspaceH.Me)
			r.Get("/{id}/members", workspaceH.ListMembers)
			r.Post("/{id}/members", workspaceH.AddMember)
			r.Delete("/{id}/members/{userID}", workspaceH.RemoveMember)
		})

		reportH := handlers.NewReportHandler(moderationSvc)
		r.Post("/reports", reportH.Create)

		// Admin routes
		adminH := handlers.NewAdminHandler(auditSvc, stats)
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/reports", reportH.List)
			r.Post("/reports/{id}/resolve", reportH.Resolve)
			r.Get("/audit", adminH.AuditLogs)
			r.Post("/prompts/{id}/recompute", adminH.RecomputeStats)
		})
	})

	return r
}
