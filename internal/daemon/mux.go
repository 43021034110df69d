package daemon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careloop/careloop/internal/access"
	"github.com/careloop/careloop/internal/directory"
	"github.com/careloop/careloop/internal/handlers"
	"github.com/careloop/careloop/internal/middleware"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/policy"
)

// NewMux wires every route behind the logging, panic recovery and session
// middleware chain. Resource routes share one generic handler per kind; the
// access engine underneath applies the tenant predicate on all of them.
func NewMux(
	sessions handlers.SessionService,
	parser middleware.TokenParser,
	dir directory.Directory,
	engine *access.Engine,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	sessionHandler := handlers.NewSessionHandler(sessions)
	mux.HandleFunc("POST /v1/session/login", sessionHandler.Login)
	mux.HandleFunc("POST /v1/session/switch", sessionHandler.Switch)

	orgHandler := handlers.NewOrganizationHandler(dir, sessions)
	mux.HandleFunc("POST /v1/organizations", orgHandler.Create)
	mux.HandleFunc("GET /v1/organizations", orgHandler.List)
	mux.HandleFunc("POST /v1/organizations/{id}/memberships", orgHandler.CreateMembership)
	mux.HandleFunc("DELETE /v1/organizations/{id}/memberships/{principalId}", orgHandler.DeactivateMembership)

	registerResource[model.Home](mux, "/v1/homes", engine, sessions, policy.KindHome)
	registerResource[model.HomeAssignment](mux, "/v1/home-assignments", engine, sessions, policy.KindHomeAssignment)
	registerResource[model.Resident](mux, "/v1/residents", engine, sessions, policy.KindResident)
	registerResource[model.CareLog](mux, "/v1/care-logs", engine, sessions, policy.KindCareLog)
	registerResource[model.Document](mux, "/v1/documents", engine, sessions, policy.KindDocument)
	registerResource[model.IncidentReport](mux, "/v1/incident-reports", engine, sessions, policy.KindIncidentReport)

	chain := []func(http.Handler) http.Handler{
		middleware.LoggingMiddleware(),
		middleware.PanicRecoveryMiddleware(),
		middleware.SessionMiddleware(parser),
	}

	var handler http.Handler = mux
	for i := len(chain) - 1; i >= 0; i-- {
		handler = chain[i](handler)
	}

	return handler
}

func registerResource[T any, PT interface {
	*T
	access.Resource
}](
	mux *http.ServeMux,
	base string,
	engine *access.Engine,
	sessions handlers.SessionService,
	kind policy.ResourceKind,
) {
	handler := handlers.NewResourceHandler[T, PT](engine, sessions, kind)

	mux.HandleFunc("GET "+base, handler.List)
	mux.HandleFunc("POST "+base, handler.Create)
	mux.HandleFunc("GET "+base+"/{id}", handler.Get)
	mux.HandleFunc("PATCH "+base+"/{id}", handler.Update)
	mux.HandleFunc("DELETE "+base+"/{id}", handler.Delete)
}
