package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/users-auth-api/internal/auth"
	"github.com/redmonkez12/users-auth-api/internal/config"
	"github.com/redmonkez12/users-auth-api/internal/httputil"
	"github.com/redmonkez12/users-auth-api/internal/logging"
	"github.com/redmonkez12/users-auth-api/internal/user"
)

// Handlers groups the endpoint handlers mounted by the router
type Handlers struct {
	Auth           *auth.Handler
	AuthMiddleware *auth.Middleware
	User           *user.Handler
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Handle("/avatars/*", avatarFiles(cfg.Avatar.Dir))

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", httputil.Wrap(h.Auth.Register))
		r.Get("/verify/{verificationToken}", httputil.Wrap(h.Auth.VerifyEmail))
		r.Post("/verify", httputil.Wrap(h.Auth.ResendVerificationEmail))
		r.Post("/login", httputil.Wrap(h.Auth.Login))

		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware.RequireAuth)
			r.Get("/current", httputil.Wrap(h.Auth.Current))
			r.Post("/logout", httputil.Wrap(h.Auth.Logout))
			r.Patch("/", httputil.Wrap(h.User.UpdateSubscription))
			r.Patch("/avatars", httputil.Wrap(h.User.UpdateAvatar))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondError(w, "Not found", http.StatusNotFound)
	})

	return r
}

// avatarFiles serves stored avatars without directory listings
func avatarFiles(dir string) http.Handler {
	fs := http.StripPrefix("/avatars/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			httputil.RespondError(w, "Not found", http.StatusNotFound)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
