/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RequestLogger:  Structured access log (httplog, ECS schema)
  3. Recoverer:      Panic recovery (500 instead of crash)
  4. CORS:           Cross-origin requests for frontend
  5. Heartbeat:      GET /health for load balancers

ROUTE GROUPS:
  /api/leaves/*          Leave applications
  /api/reimbursements/*  Reimbursement claims
  /api/approvals/*       Approver queue
  /api/employees/*       Directory and balances
  /api/leave-types       Leave catalogue
  /api/audit             Audit log
  /api/scenarios/*       Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"io"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/warp/request-engine/generic"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewLogger returns a JSON slog logger whose attributes follow the ECS
// schema used by the access log.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	logFormat := httplog.SchemaECS.Concise(false)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "request-engine"),
	)
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	logger := opts.Logger
	if logger == nil {
		logger = h.Logger
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/health"))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/leaves", func(r chi.Router) {
			r.Post("/", h.SubmitLeave)
			r.Get("/", h.ListRequests(generic.KindLeave))
			r.Get("/{id}", h.GetRequest(generic.KindLeave))
			r.Patch("/{id}", h.ProcessRequest(generic.KindLeave))
		})

		r.Route("/reimbursements", func(r chi.Router) {
			r.Post("/", h.SubmitReimbursement)
			r.Get("/", h.ListRequests(generic.KindReimbursement))
			r.Get("/{id}", h.GetRequest(generic.KindReimbursement))
			r.Patch("/{id}", h.ProcessRequest(generic.KindReimbursement))
		})

		r.Get("/approvals/pending", h.ListPending)

		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balance", h.GetBalance)
		})

		r.Get("/leave-types", h.ListLeaveTypes)
		r.Get("/audit", h.ListAudit)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
