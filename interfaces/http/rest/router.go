package rest

import (
	"context"
	"net/http"
	"time"

	"valuetree/application/commands/bus"
	querybus "valuetree/application/queries/bus"
	"valuetree/interfaces/http/rest/handlers"
	"valuetree/interfaces/http/rest/middleware"
	pkgerrors "valuetree/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency can serve requests
type ReadinessCheck func(ctx context.Context) error

// RouterOptions toggles the optional middleware
type RouterOptions struct {
	EnableCORS     bool
	AllowedOrigins []string

	// Auth is applied to /api when non-nil
	Auth *middleware.AuthOptions

	// WriteRoles restricts mutating routes to callers holding one of them;
	// empty lets every authenticated caller write
	WriteRoles []string

	Readiness ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errHandler *pkgerrors.ErrorHandler
	opts       RouterOptions
	logger     *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errHandler *pkgerrors.ErrorHandler,
	opts RouterOptions,
	logger *zap.Logger,
) *Router {
	return &Router{
		commandBus: commandBus,
		queryBus:   queryBus,
		errHandler: errHandler,
		opts:       opts,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger))
	router.Use(rt.errHandler.Middleware)
	router.Use(chimiddleware.Timeout(30 * time.Second))

	if rt.opts.EnableCORS {
		origins := rt.opts.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"http://localhost:3000", "http://localhost:5173"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "If-Match", "X-Request-ID", handlers.SessionTokenHeader},
			ExposedHeaders:   []string{"ETag", "X-Request-ID", handlers.SessionTokenHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	projects := handlers.NewProjectHandler(rt.commandBus, rt.queryBus, rt.errHandler, rt.logger)
	decompositions := handlers.NewDecompositionHandler(rt.commandBus, rt.queryBus, rt.errHandler, rt.logger)

	router.Route("/api/projects", func(r chi.Router) {
		if rt.opts.Auth != nil {
			r.Use(middleware.Authenticate(*rt.opts.Auth, rt.errHandler, rt.logger))
		}

		w := r.With(rt.writeGuard())

		w.Post("/", projects.CreateProject)

		r.Route("/{projectID}", func(r chi.Router) {
			w := r.With(rt.writeGuard())

			r.Get("/", projects.GetProject)
			w.Put("/", projects.ReplaceTree)
			r.Get("/criteria", projects.ListCriteria)

			r.Route("/nodes", func(r chi.Router) {
				w := r.With(rt.writeGuard())

				w.Post("/", projects.AppendChildren)
				r.Get("/{nodeID}", projects.GetNode)
				w.Patch("/{nodeID}", projects.RenameNode)
				w.Delete("/{nodeID}", projects.DeleteNode)
				w.Put("/{nodeID}/requirement", projects.SetRequirement)
			})

			r.Route("/decomposition", func(r chi.Router) {
				w := r.With(rt.writeGuard())

				w.Post("/", decompositions.Start)
				r.Get("/", decompositions.Get)
				w.Delete("/", decompositions.Abandon)
				w.Post("/count", decompositions.SubmitCount)
				w.Post("/details", decompositions.SubmitDetails)
			})
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errHandler.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errHandler.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

// writeGuard enforces WriteRoles on mutating routes once callers are authenticated
func (rt *Router) writeGuard() func(http.Handler) http.Handler {
	if rt.opts.Auth == nil || len(rt.opts.WriteRoles) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RequireRole(rt.errHandler, rt.opts.WriteRoles...)
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.opts.Readiness != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.opts.Readiness(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			rt.errHandler.Handle(w, req, pkgerrors.NewUnavailableError("storage"))
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
