package api

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"

	"github.com/inmofin/inmofin/internal/domain/common"
	"github.com/inmofin/inmofin/pkg/middleware"
	"github.com/inmofin/inmofin/pkg/observability"
)

// SetupRouter configures all routes and returns the HTTP handler.
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	jwtSecret := []byte(deps.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		deps.Logger.Warn("JWT secret is empty; authentication middleware will reject requests")
	}

	publicPaths := []string{
		"/health",
		"/health/details",
		"/ready",
		"/metrics",
	}

	registerAPIRoutes(mux, deps)
	registerUtilityRoutes(mux, deps)

	tracer := otel.GetTracerProvider().Tracer("inmofin/api")

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Tracing(tracer),
	}
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		// Rate limiting sits after tracing so rejected requests still
		// show up in spans.
		chain = append(chain, middleware.RateLimit(
			float64(deps.Config.Server.RateLimitPerSecond),
			deps.Config.Server.RateLimitBurst,
		))
	}
	chain = append(chain,
		middleware.Recover(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.Auth(jwtSecret, publicPaths),
		observability.MetricsMiddleware,
	)

	handler := middleware.Chain(mux, chain...)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // narrow to the frontend origin in production
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           7200,
	})

	return corsHandler.Handler(handler)
}

// registerAPIRoutes wires the domain handlers onto the mux.
func registerAPIRoutes(mux *http.ServeMux, deps *Dependencies) {
	// Statement import pipeline
	mux.HandleFunc("POST /api/v1/import/analyze", deps.ImportHandler.Analyze)
	mux.HandleFunc("POST /api/v1/import/run", deps.ImportHandler.Run)
	mux.HandleFunc("POST /api/v1/import/profiles", deps.ImportHandler.SaveProfile)
	mux.HandleFunc("GET /api/v1/import/profiles", deps.ImportHandler.ListProfiles)
	mux.HandleFunc("GET /api/v1/import/jobs/{id}", deps.ImportHandler.GetJob)

	// Document inbox
	mux.HandleFunc("POST /api/v1/inbox", deps.InboxHandler.Upload)
	mux.HandleFunc("GET /api/v1/inbox", deps.InboxHandler.List)
	mux.HandleFunc("GET /api/v1/inbox/{id}", deps.InboxHandler.Get)
	mux.HandleFunc("POST /api/v1/inbox/{id}/correct", deps.InboxHandler.Correct)
	mux.HandleFunc("POST /api/v1/inbox/{id}/route", deps.InboxHandler.Route)

	// Treasury
	mux.HandleFunc("POST /api/v1/treasury/validate", deps.TreasuryHandler.ValidateBatch)
	mux.HandleFunc("POST /api/v1/treasury/records", deps.TreasuryHandler.CreateRecord)
	mux.HandleFunc("GET /api/v1/treasury/records", deps.TreasuryHandler.ListRecords)

	// Loans
	mux.HandleFunc("POST /api/v1/loans/schedule", deps.LoansHandler.Schedule)

	deps.Logger.Info("API routes configured")
}

type checkStatus struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// registerUtilityRoutes wires health, readiness, and metrics endpoints.
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		if err := deps.DB.Health(); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /health/details", func(w http.ResponseWriter, _ *http.Request) {
		checks := map[string]checkStatus{
			"db":  {Status: "ok"},
			"env": {Status: "ok"},
		}
		code := http.StatusOK

		if err := deps.DB.Health(); err != nil {
			checks["db"] = checkStatus{Status: "fail", Detail: err.Error()}
			code = http.StatusServiceUnavailable
		}
		if os.Getenv("OCR_BASE_URL") == "" {
			checks["env"] = checkStatus{Status: "warn", Detail: "OCR_BASE_URL missing; inbox extraction disabled"}
		}

		common.RespondJSON(w, code, checks)
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
}
