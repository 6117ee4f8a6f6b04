package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"users-service/internal/util"
)

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
	RequireTLS     bool
	Timeout        time.Duration
}

// requireHTTPS rejects any request that wasn't made over TLS
func requireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUpgradeRequired) // 426
			w.Write([]byte(`{"success":false,"error":"https_required","message":"HTTPS required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// anyOrigin reports a wildcard origin list. Credentials are never allowed
// together with a wildcard.
func anyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return len(origins) == 0
}

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if cfg.RequireTLS {
		router.Use(requireHTTPS)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	// Middleware stack
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Timeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !anyOrigin(cfg.AllowedOrigins),
		MaxAge:           300,
	}))

	router.Get("/health", h.Health)

	router.Route("/api/v1", func(r chi.Router) {
		h.RegisterRoutes(r)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondWithJSON(w, http.StatusNotFound, Response{Error: "not_found", Message: "Endpoint not found"})
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.respondWithJSON(w, http.StatusMethodNotAllowed, Response{Error: "method_not_allowed", Message: "Method not allowed"})
	})

	return router
}

// RegisterRoutes registers the verification, auth and user routes
func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Route("/verification", func(r chi.Router) {
		r.Post("/send", h.SendVerificationCode)
		r.Post("/verify", h.VerifyCode)
	})

	router.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/authenticate", h.Authenticate)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
		r.Post("/logout-all", h.LogoutAll)
		r.Post("/validate", h.ValidateToken)
		r.Post("/reset-password", h.ResetPassword)
	})

	router.Route("/users", func(r chi.Router) {
		r.Get("/", h.GetUser)
		r.Post("/batch", h.GetUsersBatch)
		r.Get("/search", h.SearchUsers)

		r.Route("/me", func(r chi.Router) {
			r.Get("/", h.GetMe)
			r.Patch("/", h.UpdateMe)
			r.Post("/refresh-owner", h.GetRefreshOwner)
			r.Put("/avatar", h.UpdateAvatar)
			r.Put("/password", h.UpdatePassword)
			r.Put("/email", h.UpdateEmail)
			r.Put("/phone", h.UpdatePhone)
			r.Post("/confirm/{field}", h.ConfirmField)
		})

		r.Get("/{userID}", h.GetUserByID)
	})
}

// Health reports every backing client; any failure turns the response into
// a 503.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	healthy := true
	if h.health != nil {
		for name, err := range h.health.HealthCheck(r.Context()) {
			if err != nil {
				healthy = false
				status[name] = err.Error()
				continue
			}
			status[name] = "ok"
		}
	}

	if !healthy {
		h.logger.Warn("Health check failed", zap.Any("components", status))
		h.respondWithJSON(w, http.StatusServiceUnavailable, Response{Data: status, Error: "unhealthy", Message: "Service unhealthy"})
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(status, "Service is healthy"))
}

// LoggerMiddleware creates a middleware that logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("request_id", middleware.GetReqID(r.Context())),
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
