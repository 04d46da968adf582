package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/health"
	"github.com/accountpulse/accountpulse/internal/kafka"
	"github.com/accountpulse/accountpulse/internal/scoring"
)

// Gateway represents the API gateway
type Gateway struct {
	server   *http.Server
	router   *mux.Router
	store    account.Store
	cache    ScoreCache
	producer kafka.Producer
	narrator Narrator
	checker  *health.HealthChecker
	config   GatewayConfig
	metrics  *GatewayMetrics
}

// ScoreCache interface for churn score memoization
type ScoreCache interface {
	Get(ctx context.Context, key string) (scoring.ScoreResult, bool)
	Set(ctx context.Context, key string, result scoring.ScoreResult) error
	Clear(ctx context.Context) error
	Stats() map[string]interface{}
}

// Narrator interface for LLM-backed narrative operations
type Narrator interface {
	NarrateChurn(ctx context.Context, acct *account.Account, result scoring.ScoreResult) (string, error)
	NarrateExpansion(ctx context.Context, acct *account.Account, result scoring.ExpansionResult) (string, error)
	Chat(ctx context.Context, acct *account.Account, latest *account.Snapshot, history []account.Prediction, question string) (string, error)
}

// GatewayConfig represents gateway configuration
type GatewayConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	IdleTimeout    time.Duration `json:"idle_timeout"`
	EnableCORS     bool          `json:"enable_cors"`
	AllowedOrigins []string      `json:"allowed_origins"`
	AllowedMethods []string      `json:"allowed_methods"`
	AllowedHeaders []string      `json:"allowed_headers"`
}

// DefaultGatewayConfig returns default gateway configuration
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}
}

// GatewayMetrics represents gateway metrics
type GatewayMetrics struct {
	mu               sync.Mutex
	RequestsTotal    int64            `json:"requests_total"`
	RequestsFailed   int64            `json:"requests_failed"`
	AverageLatency   time.Duration    `json:"average_latency"`
	RequestsByPath   map[string]int64 `json:"requests_by_path"`
	RequestsByMethod map[string]int64 `json:"requests_by_method"`
	RequestsByStatus map[int]int64    `json:"requests_by_status"`
	LastRequest      time.Time        `json:"last_request"`
}

// NewGateway creates a new API gateway. cache, producer and narrator
// may be nil; the endpoints that need them report unavailability.
func NewGateway(config GatewayConfig, store account.Store, cache ScoreCache, producer kafka.Producer, narrator Narrator, checker *health.HealthChecker) *Gateway {
	router := mux.NewRouter()

	gateway := &Gateway{
		router:   router,
		store:    store,
		cache:    cache,
		producer: producer,
		narrator: narrator,
		checker:  checker,
		config:   config,
		metrics: &GatewayMetrics{
			RequestsByPath:   make(map[string]int64),
			RequestsByMethod: make(map[string]int64),
			RequestsByStatus: make(map[int]int64),
		},
	}

	gateway.setupRoutes()
	gateway.setupMiddleware()

	gateway.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return gateway
}

// setupRoutes configures all API routes
func (g *Gateway) setupRoutes() {
	api := g.router.PathPrefix("/api/v1").Subrouter()

	// Account routes
	accounts := api.PathPrefix("/accounts").Subrouter()
	accounts.HandleFunc("", g.handleListAccounts).Methods("GET")
	accounts.HandleFunc("", g.handleCreateAccount).Methods("POST")
	accounts.HandleFunc("/{id}", g.handleGetAccount).Methods("GET")
	accounts.HandleFunc("/{id}", g.handleUpdateAccount).Methods("PUT")
	accounts.HandleFunc("/{id}", g.handleDeleteAccount).Methods("DELETE")
	accounts.HandleFunc("/{id}/snapshots", g.handleCreateSnapshot).Methods("POST")
	accounts.HandleFunc("/{id}/snapshots", g.handleListSnapshots).Methods("GET")
	accounts.HandleFunc("/{id}/predictions", g.handleListPredictions).Methods("GET")

	// Scoring routes
	predictions := api.PathPrefix("/predictions").Subrouter()
	predictions.HandleFunc("/churn", g.handleChurnPrediction).Methods("POST")
	predictions.HandleFunc("/upsell", g.handleUpsellPrediction).Methods("POST")

	// Narrative and chat routes
	accounts.HandleFunc("/{id}/narrative/churn", g.handleChurnNarrative).Methods("POST")
	accounts.HandleFunc("/{id}/narrative/expansion", g.handleExpansionNarrative).Methods("POST")
	accounts.HandleFunc("/{id}/chat", g.handleChat).Methods("POST")

	// Health and metrics
	if g.checker != nil {
		api.HandleFunc("/health", g.checker.HTTPHandler()).Methods("GET")
	}
	api.HandleFunc("/metrics", g.handleMetrics).Methods("GET")

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/cache/clear", g.handleClearCache).Methods("POST")
	admin.HandleFunc("/cache/stats", g.handleCacheStats).Methods("GET")
}

// setupMiddleware configures HTTP middleware
func (g *Gateway) setupMiddleware() {
	if g.config.EnableCORS {
		c := cors.New(cors.Options{
			AllowedOrigins:   g.config.AllowedOrigins,
			AllowedMethods:   g.config.AllowedMethods,
			AllowedHeaders:   g.config.AllowedHeaders,
			AllowCredentials: true,
		})
		g.router.Use(c.Handler)
	}

	g.router.Use(g.metricsMiddleware)
}

// Start starts the API gateway
func (g *Gateway) Start() error {
	log.Printf("Starting API gateway on %s", g.server.Addr)
	return g.server.ListenAndServe()
}

// Stop stops the API gateway
func (g *Gateway) Stop(ctx context.Context) error {
	log.Printf("Stopping API gateway")
	return g.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Response types

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type APIMeta struct {
	Total   int  `json:"total,omitempty"`
	Limit   int  `json:"limit,omitempty"`
	HasMore bool `json:"has_more,omitempty"`
}

// Helper functions

func writeJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message, details string) {
	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	writeJSONResponse(w, status, response)
}

func writeSuccessResponse(w http.ResponseWriter, status int, data interface{}, meta *APIMeta) {
	response := APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
	writeJSONResponse(w, status, response)
}

func parseRequestBody(r *http.Request, target interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// Middleware implementations

func (g *Gateway) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		g.updateMetrics(r, wrapped.statusCode, time.Since(start))
	})
}

func (g *Gateway) updateMetrics(r *http.Request, statusCode int, duration time.Duration) {
	g.metrics.mu.Lock()
	defer g.metrics.mu.Unlock()

	g.metrics.RequestsTotal++
	if statusCode >= 500 {
		g.metrics.RequestsFailed++
	}
	g.metrics.RequestsByPath[r.URL.Path]++
	g.metrics.RequestsByMethod[r.Method]++
	g.metrics.RequestsByStatus[statusCode]++
	g.metrics.LastRequest = time.Now()

	if g.metrics.AverageLatency == 0 {
		g.metrics.AverageLatency = duration
	} else {
		g.metrics.AverageLatency = (g.metrics.AverageLatency + duration) / 2
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
