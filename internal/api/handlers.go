package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/cache"
	"github.com/accountpulse/accountpulse/internal/kafka"
	"github.com/accountpulse/accountpulse/internal/scoring"
)

// Request/Response types

type CreateSnapshotRequest struct {
	Metrics scoring.MetricSet `json:"metrics"`
	Source  string            `json:"source,omitempty"`
}

type ChurnPredictionRequest struct {
	AccountID string            `json:"account_id,omitempty"`
	Metrics   scoring.MetricSet `json:"metrics"`
}

type ChurnPredictionResponse struct {
	AccountID string              `json:"account_id,omitempty"`
	Result    scoring.ScoreResult `json:"result"`
	Cached    bool                `json:"cached"`
}

type UpsellPredictionRequest struct {
	AccountID         string                `json:"account_id,omitempty"`
	Metrics           scoring.UpsellMetrics `json:"metrics"`
	AvailableProducts []string              `json:"available_products"`
}

type UpsellPredictionResponse struct {
	AccountID string                  `json:"account_id,omitempty"`
	Result    scoring.ExpansionResult `json:"result"`
}

type ExpansionNarrativeRequest struct {
	Metrics           scoring.UpsellMetrics `json:"metrics"`
	AvailableProducts []string              `json:"available_products"`
}

type NarrativeResponse struct {
	Narrative string      `json:"narrative"`
	Result    interface{} `json:"result"`
}

type ChatRequest struct {
	Question string `json:"question"`
}

type ChatResponse struct {
	Answer string `json:"answer"`
}

// Account handlers

func (g *Gateway) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var acct account.Account
	if err := parseRequestBody(r, &acct); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	if acct.Name == "" {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Account name is required", "")
		return
	}
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	if acct.Status == "" {
		acct.Status = account.StatusActive
	}
	now := time.Now().UTC()
	acct.CreatedAt = now
	acct.UpdatedAt = now

	if err := g.store.CreateAccount(r.Context(), &acct); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to create account", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusCreated, acct, nil)
}

func (g *Gateway) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	acct, err := g.store.GetAccount(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Account not found", "")
		return
	}
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to get account", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, acct, nil)
}

func (g *Gateway) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var acct account.Account
	if err := parseRequestBody(r, &acct); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	acct.ID = mux.Vars(r)["id"]
	acct.UpdatedAt = time.Now().UTC()

	err := g.store.UpdateAccount(r.Context(), &acct)
	if errors.Is(err, account.ErrNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Account not found", "")
		return
	}
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to update account", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, acct, nil)
}

func (g *Gateway) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := g.store.DeleteAccount(r.Context(), id)
	if errors.Is(err, account.ErrNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Account not found", "")
		return
	}
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to delete account", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"}, nil)
}

func (g *Gateway) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := g.store.ListAccounts(r.Context())
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list accounts", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, accounts, &APIMeta{Total: len(accounts)})
}

// Snapshot handlers

func (g *Gateway) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	var req CreateSnapshotRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	if err := scoring.Validate(req.Metrics); err != nil {
		writeErrorResponse(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Metrics failed validation", err.Error())
		return
	}

	if _, err := g.store.GetAccount(r.Context(), accountID); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Account not found", "")
			return
		}
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to get account", err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = "api"
	}
	snap := &account.Snapshot{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		Metrics:    req.Metrics,
		Source:     source,
		CapturedAt: time.Now().UTC(),
	}
	if err := g.store.SaveSnapshot(r.Context(), snap); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to save snapshot", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusCreated, snap, nil)
}

func (g *Gateway) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]
	limit := parseLimit(r, 50)

	snaps, err := g.store.ListSnapshots(r.Context(), accountID, limit)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list snapshots", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, snaps, &APIMeta{Total: len(snaps), Limit: limit})
}

func (g *Gateway) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]
	limit := parseLimit(r, 20)

	preds, err := g.store.ListPredictions(r.Context(), accountID, limit)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list predictions", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, preds, &APIMeta{Total: len(preds), Limit: limit})
}

// Prediction handlers

func (g *Gateway) handleChurnPrediction(w http.ResponseWriter, r *http.Request) {
	var req ChurnPredictionRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	if err := scoring.Validate(req.Metrics); err != nil {
		writeErrorResponse(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Metrics failed validation", err.Error())
		return
	}

	var acct *account.Account
	if req.AccountID != "" {
		var err error
		acct, err = g.store.GetAccount(r.Context(), req.AccountID)
		if errors.Is(err, account.ErrNotFound) {
			writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Account not found", "")
			return
		}
		if err != nil {
			writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to get account", err.Error())
			return
		}
	}

	key := cache.Key(req.Metrics)
	var result scoring.ScoreResult
	cached := false
	if g.cache != nil {
		result, cached = g.cache.Get(r.Context(), key)
	}
	if !cached {
		result = scoring.Score(req.Metrics)
		if g.cache != nil {
			if err := g.cache.Set(r.Context(), key, result); err != nil {
				log.Printf("Failed to cache score: %v", err)
			}
		}
	}

	if acct != nil {
		g.recordPrediction(r, acct.ID, account.PredictionChurn, req.Metrics, result)
	}
	g.publishChurnEvent(r, req.AccountID, result)

	writeSuccessResponse(w, http.StatusOK, ChurnPredictionResponse{
		AccountID: req.AccountID,
		Result:    result,
		Cached:    cached,
	}, nil)
}

func (g *Gateway) handleUpsellPrediction(w http.ResponseWriter, r *http.Request) {
	var req UpsellPredictionRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	if err := scoring.ValidateUpsell(req.Metrics); err != nil {
		writeErrorResponse(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Metrics failed validation", err.Error())
		return
	}

	if req.AccountID != "" {
		if _, err := g.store.GetAccount(r.Context(), req.AccountID); err != nil {
			if errors.Is(err, account.ErrNotFound) {
				writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Account not found", "")
				return
			}
			writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to get account", err.Error())
			return
		}
	}

	result := scoring.ScoreExpansion(req.Metrics, req.AvailableProducts)

	if req.AccountID != "" {
		g.recordPrediction(r, req.AccountID, account.PredictionUpsell, req.Metrics, result)
	}
	if g.producer != nil {
		event := kafka.UpsellScoredEvent{
			EventID:            uuid.New().String(),
			AccountID:          req.AccountID,
			ExpansionScore:     result.ExpansionScore,
			ExpansionPotential: result.ExpansionPotential,
			ScoredAt:           time.Now().UTC(),
		}
		key := req.AccountID
		if key == "" {
			key = event.EventID
		}
		if err := g.producer.SendJSON(r.Context(), kafka.TopicUpsellScored, key, event); err != nil {
			log.Printf("Failed to publish upsell event: %v", err)
		}
	}

	writeSuccessResponse(w, http.StatusOK, UpsellPredictionResponse{
		AccountID: req.AccountID,
		Result:    result,
	}, nil)
}

func (g *Gateway) recordPrediction(r *http.Request, accountID, kind string, metrics interface{}, result interface{}) {
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		log.Printf("Failed to marshal prediction metrics: %v", err)
		return
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		log.Printf("Failed to marshal prediction result: %v", err)
		return
	}
	pred := &account.Prediction{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Kind:      kind,
		Metrics:   metricsJSON,
		Result:    resultJSON,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.store.SavePrediction(r.Context(), pred); err != nil {
		log.Printf("Failed to save prediction for account %s: %v", accountID, err)
	}
}

func (g *Gateway) publishChurnEvent(r *http.Request, accountID string, result scoring.ScoreResult) {
	if g.producer == nil {
		return
	}
	event := kafka.ChurnScoredEvent{
		EventID:     uuid.New().String(),
		AccountID:   accountID,
		HealthScore: result.HealthScore,
		RiskTier:    result.RiskTier,
		Drivers:     result.Drivers,
		ScoredAt:    time.Now().UTC(),
	}
	key := accountID
	if key == "" {
		key = event.EventID
	}
	if err := g.producer.SendJSON(r.Context(), kafka.TopicChurnScored, key, event); err != nil {
		log.Printf("Failed to publish churn event: %v", err)
	}
}

// Narrative and chat handlers

func (g *Gateway) handleChurnNarrative(w http.ResponseWriter, r *http.Request) {
	if g.narrator == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Narrative service is not configured", "")
		return
	}
	accountID := mux.Vars(r)["id"]

	acct, err := g.store.GetAccount(r.Context(), accountID)
	if errors.Is(err, account.ErrNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Account not found", "")
		return
	}
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to get account", err.Error())
		return
	}

	snap, err := g.store.LatestSnapshot(r.Context(), accountID)
	if errors.Is(err, account.ErrNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "NO_SNAPSHOT", "Account has no metric snapshot to score", "")
		return
	}
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to get snapshot", err.Error())
		return
	}

	if err := scoring.Validate(snap.Metrics); err != nil {
		writeErrorResponse(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Stored metrics failed validation", err.Error())
		return
	}
	result := scoring.Score(snap.Metrics)

	narrative, err := g.narrator.NarrateChurn(r.Context(), acct, result)
	if err != nil {
		writeErrorResponse(w, http.StatusBadGateway, "NARRATIVE_FAILED", "Failed to generate narrative", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, NarrativeResponse{Narrative: narrative, Result: result}, nil)
}

func (g *Gateway) handleExpansionNarrative(w http.ResponseWriter, r *http.Request) {
	if g.narrator == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Narrative service is not configured", "")
		return
	}
	accountID := mux.Vars(r)["id"]

	acct, err := g.store.GetAccount(r.Context(), accountID)
	if errors.Is(err, account.ErrNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Account not found", "")
		return
	}
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to get account", err.Error())
		return
	}

	var req ExpansionNarrativeRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	if err := scoring.ValidateUpsell(req.Metrics); err != nil {
		writeErrorResponse(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "Metrics failed validation", err.Error())
		return
	}
	result := scoring.ScoreExpansion(req.Metrics, req.AvailableProducts)

	narrative, err := g.narrator.NarrateExpansion(r.Context(), acct, result)
	if err != nil {
		writeErrorResponse(w, http.StatusBadGateway, "NARRATIVE_FAILED", "Failed to generate narrative", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, NarrativeResponse{Narrative: narrative, Result: result}, nil)
}

func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if g.narrator == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Narrative service is not configured", "")
		return
	}
	accountID := mux.Vars(r)["id"]

	var req ChatRequest
	if err := parseRequestBody(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body", err.Error())
		return
	}
	if req.Question == "" {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_REQUEST", "Question is required", "")
		return
	}

	acct, err := g.store.GetAccount(r.Context(), accountID)
	if errors.Is(err, account.ErrNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "NOT_FOUND", "Account not found", "")
		return
	}
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to get account", err.Error())
		return
	}

	snap, err := g.store.LatestSnapshot(r.Context(), accountID)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to get snapshot", err.Error())
		return
	}

	preds, err := g.store.ListPredictions(r.Context(), accountID, 5)
	if err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list predictions", err.Error())
		return
	}
	history := make([]account.Prediction, 0, len(preds))
	for _, p := range preds {
		history = append(history, *p)
	}

	answer, err := g.narrator.Chat(r.Context(), acct, snap, history, req.Question)
	if err != nil {
		writeErrorResponse(w, http.StatusBadGateway, "CHAT_FAILED", "Failed to answer question", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, ChatResponse{Answer: answer}, nil)
}

// Metrics and admin handlers

func (g *Gateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	g.metrics.mu.Lock()
	snapshot := map[string]interface{}{
		"requests_total":     g.metrics.RequestsTotal,
		"requests_failed":    g.metrics.RequestsFailed,
		"average_latency":    g.metrics.AverageLatency.String(),
		"requests_by_path":   copyCounter(g.metrics.RequestsByPath),
		"requests_by_method": copyCounter(g.metrics.RequestsByMethod),
		"last_request":       g.metrics.LastRequest,
	}
	g.metrics.mu.Unlock()

	writeSuccessResponse(w, http.StatusOK, snapshot, nil)
}

func (g *Gateway) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if g.cache == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Score cache is not configured", "")
		return
	}
	if err := g.cache.Clear(r.Context()); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "CACHE_ERROR", "Failed to clear cache", err.Error())
		return
	}
	writeSuccessResponse(w, http.StatusOK, map[string]string{"status": "cleared"}, nil)
}

func (g *Gateway) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if g.cache == nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "NOT_CONFIGURED", "Score cache is not configured", "")
		return
	}
	writeSuccessResponse(w, http.StatusOK, g.cache.Stats(), nil)
}

func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

func copyCounter(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
