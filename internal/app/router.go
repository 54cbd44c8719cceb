package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AleksGin/business-manager/internal/auth"
	"github.com/AleksGin/business-manager/internal/evaluations"
	"github.com/AleksGin/business-manager/internal/meetings"
	"github.com/AleksGin/business-manager/internal/observability"
	"github.com/AleksGin/business-manager/internal/tasks"
	"github.com/AleksGin/business-manager/internal/teams"
	"github.com/AleksGin/business-manager/internal/tokens"
	"github.com/AleksGin/business-manager/internal/users"
	"github.com/AleksGin/business-manager/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config
	Tokens *tokens.Service

	AuthHandler        *auth.Handler
	UsersHandler       *users.Handler
	TeamsHandler       *teams.Handler
	TasksHandler       *tasks.Handler
	MeetingsHandler    *meetings.Handler
	EvaluationsHandler *evaluations.Handler
	JobHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router. Auth routes are public; everything
// else sits behind the bearer middleware.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(params.Tokens, params.Logger))
			params.AuthHandler.MountProtectedRoutes(r)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(params.Tokens, params.Logger))

		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/teams", params.TeamsHandler.MountRoutes)
		r.Route("/tasks", params.TasksHandler.MountRoutes)
		r.Route("/meetings", params.MeetingsHandler.MountRoutes)
		r.Route("/evaluations", params.EvaluationsHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
