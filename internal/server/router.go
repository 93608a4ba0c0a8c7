package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/agencyhq/agencyapi/internal/auth"
	gatekeeper "github.com/agencyhq/agencyapi/internal/middleware"
	"github.com/agencyhq/agencyapi/internal/services/identity"
	"github.com/agencyhq/agencyapi/internal/services/org"
)

// ManageMembersPermission is the global permission gating membership writes.
const ManageMembersPermission = "org:manage"

// RouterOptions controls the construction of the HTTP router.
// The zero value is valid; sensible defaults are applied where fields are not set.
type RouterOptions struct {
	Verifier      *auth.Verifier
	Identity      *identity.Service
	Org           *org.Service
	LoginURL      string
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
	ExtraRoutes   func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Requested-With",
		},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, CORS policy, and
// the API handlers mounted. Everything under /api sits behind the session
// gatekeeper; membership writes additionally require the manage permission.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	r := chi.NewRouter()

	// Baseline middleware shared across entrypoints.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.Verifier != nil {
		requireSession, err := gatekeeper.NewRequireSession(gatekeeper.GatekeeperDependencies{
			Verifier: opts.Verifier,
			Identity: opts.Identity,
			LoginURL: opts.LoginURL,
		})
		if err != nil {
			return nil, err
		}

		r.Route("/api", func(api chi.Router) {
			api.Use(requireSession)

			api.Get("/me", HandleMe())
			if opts.Identity != nil {
				api.Post("/me/sync", HandleMeSync(opts.Identity))
			}

			if opts.Org != nil {
				handlers := NewOrganizationHandlers(opts.Org)
				manage := gatekeeper.RequirePermissions(opts.Verifier, ManageMembersPermission)

				api.Route("/orgs/{slug}", func(orgs chi.Router) {
					orgs.Get("/", handlers.GetOrganization)
					orgs.Get("/owners", handlers.ListOwners)
					orgs.Get("/members", handlers.ListMembers)
					orgs.Get("/members/count", handlers.CountMembers)
					orgs.Get("/members/{userID}", handlers.GetMember)

					orgs.With(manage).Post("/members", handlers.AddMember)
					orgs.With(manage).Patch("/members/{userID}", handlers.UpdateMember)
					orgs.With(manage).Delete("/members/{userID}", handlers.RemoveMember)
					orgs.With(manage).Post("/sync", handlers.SyncMetadata)
				})
			}
		})
	}

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r, nil
}

// NewH2CHandler wraps the router with an h2c server to provide HTTP/2 over
// cleartext for local development behind proxies that speak it.
func NewH2CHandler(opts RouterOptions) (http.Handler, error) {
	router, err := NewRouter(opts)
	if err != nil {
		return nil, err
	}
	return h2c.NewHandler(router, &http2.Server{}), nil
}
