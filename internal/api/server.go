// Package api provides the HTTP API for turnip price predictions.
// GET endpoints are public. POST /rebuild requires a bearer token.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/stalk-market/internal/market"
	"github.com/talgya/stalk-market/internal/persistence"
	"github.com/talgya/stalk-market/internal/report"
	"github.com/talgya/stalk-market/internal/sweep"
)

const maxBodyBytes = 64 << 10

// Server serves predictions and stored lookup tables over HTTP.
type Server struct {
	DB          *persistence.DB // nil disables history, tables and rebuilds
	Port        int
	AdminKey    string // Bearer token for POST /rebuild. Empty = rebuild disabled.
	Workers     int
	MinBuy      int
	MaxBuy      int
	PredictRate int      // predictions per IP per hour
	CORSOrigins []string // allowed in addition to localhost dev servers

	started    time.Time
	rebuilding atomic.Bool
	limiter    *RateLimiter
}

// PredictRequest is the body of POST /api/v1/predict.
type PredictRequest struct {
	Buy    int   `json:"buy_price"`
	Prices []int `json:"prices"` // Mon AM first; 0 or missing = unknown
}

// PredictResponse answers a prediction. ID is set when the prediction was stored.
type PredictResponse struct {
	ID         string            `json:"id,omitempty"`
	Source     string            `json:"source"`
	Surviving  int               `json:"surviving"`
	Prediction market.Prediction `json:"prediction"`
}

// Status is the body of GET /api/v1/status.
type Status struct {
	Name        string `json:"name"`
	Uptime      string `json:"uptime"`
	MinBuy      int    `json:"min_buy"`
	MaxBuy      int    `json:"max_buy"`
	Database    bool   `json:"database"`
	Tables      int    `json:"tables"`
	TableSize   string `json:"table_size,omitempty"`
	Predictions int    `json:"predictions"`
	LastRun     string `json:"last_run,omitempty"`
	Rebuilding  bool   `json:"rebuilding"`
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	if s.MinBuy == 0 && s.MaxBuy == 0 {
		s.MinBuy, s.MaxBuy = market.MinBuyPrice, market.MaxBuyPrice
	}
	rate := s.PredictRate
	if rate <= 0 {
		rate = 600
	}
	predictLimiter := NewRateLimiter(rate, time.Hour)
	s.limiter = predictLimiter

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/patterns", s.handlePatterns)
	mux.HandleFunc("GET /api/v1/predict", RateLimitMiddleware(predictLimiter, s.handlePredictQuery))
	mux.HandleFunc("POST /api/v1/predict", RateLimitMiddleware(predictLimiter, s.handlePredictBody))
	mux.HandleFunc("GET /api/v1/table/{buy}", RateLimitMiddleware(predictLimiter, s.handleTable))
	mux.HandleFunc("GET /api/v1/predictions", s.handlePredictions)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/rebuild", s.adminOnly(s.handleRebuild))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server is
// used to shut it down.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "database", s.DB != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// Close releases the rate limiter's background sweep.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(extra []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range extra {
		allowedOrigins[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no STALK_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		Name:       "stalk-market",
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		MinBuy:     s.MinBuy,
		MaxBuy:     s.MaxBuy,
		Database:   s.DB != nil,
		Rebuilding: s.rebuilding.Load(),
	}
	if s.DB != nil {
		stats, err := s.DB.Stats()
		if err != nil {
			slog.Error("status query failed", "error", err)
			http.Error(w, "database error", http.StatusInternalServerError)
			return
		}
		status.Tables = stats.Tables
		status.TableSize = humanize.Bytes(uint64(stats.TableBytes))
		status.Predictions = stats.Predictions
		status.LastRun = stats.LastRun
	}
	writeJSON(w, status)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, report.Labels())
}

// handlePredictQuery runs a live search for GET /api/v1/predict?buy=..&prices=..
// without storing it.
func (s *Server) handlePredictQuery(w http.ResponseWriter, r *http.Request) {
	buy, err := s.parseBuy(r.URL.Query().Get("buy"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	observed, err := market.ParseObserved(r.URL.Query().Get("prices"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pred := predict(buy, observed)
	writeJSON(w, PredictResponse{Source: sourceLive, Surviving: pred.Surviving(), Prediction: pred})
}

// handlePredictBody runs a live search and stores it when a database is
// configured.
func (s *Server) handlePredictBody(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := s.checkBuy(req.Buy); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	observed, err := market.ObservedFrom(req.Prices)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pred := predict(req.Buy, observed)
	resp := PredictResponse{Source: sourceLive, Surviving: pred.Surviving(), Prediction: pred}
	if s.DB != nil {
		id, err := s.DB.SavePrediction(sourceLive, pred)
		if err != nil {
			slog.Error("save prediction failed", "error", err)
			http.Error(w, "could not store prediction", http.StatusInternalServerError)
			return
		}
		resp.ID = id
	}
	writeJSON(w, resp)
}

// handleTable matches observed prices against the stored table for a buy price.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	buy, err := s.parseBuy(r.PathValue("buy"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	observed, err := market.ParseObserved(r.URL.Query().Get("prices"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	table, err := s.DB.LoadTable(buy)
	if errors.Is(err, persistence.ErrNoTable) {
		http.Error(w, fmt.Sprintf("no table for buy price %d", buy), http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("load table failed", "buy_price", buy, "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}

	start := time.Now()
	pred := market.MatchTable(table, observed)
	observePrediction(sourceTable, pred, time.Since(start))
	writeJSON(w, PredictResponse{Source: sourceTable, Surviving: pred.Surviving(), Prediction: pred})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := s.DB.RecentPredictions(limit)
	if err != nil {
		slog.Error("predictions query failed", "error", err)
		http.Error(w, "database error", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []persistence.PredictionRecord{}
	}
	writeJSON(w, records)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	if !s.rebuilding.CompareAndSwap(false, true) {
		http.Error(w, "rebuild already running", http.StatusConflict)
		return
	}
	defer s.rebuilding.Store(false)

	sum, err := sweep.Build(r.Context(), s.MinBuy, s.MaxBuy, s.Workers, s.DB)
	if err != nil {
		rebuildsTotal.WithLabelValues("error").Inc()
		slog.Error("rebuild failed", "error", err)
		http.Error(w, "rebuild failed", http.StatusInternalServerError)
		return
	}
	rebuildsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, sum)
}

func (s *Server) parseBuy(raw string) (int, error) {
	buy, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid buy price %q", raw)
	}
	return buy, s.checkBuy(buy)
}

func (s *Server) checkBuy(buy int) error {
	if err := market.ValidateBuy(buy); err != nil {
		return err
	}
	if buy < s.MinBuy || buy > s.MaxBuy {
		return fmt.Errorf("buy price %d outside served range %d..%d", buy, s.MinBuy, s.MaxBuy)
	}
	return nil
}

func predict(buy int, observed market.Observed) market.Prediction {
	start := time.Now()
	pred := market.Predict(buy, observed)
	observePrediction(sourceLive, pred, time.Since(start))
	return pred
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
