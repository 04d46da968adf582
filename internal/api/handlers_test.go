package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountpulse/accountpulse/internal/account"
	"github.com/accountpulse/accountpulse/internal/scoring"
	"github.com/accountpulse/accountpulse/internal/store"
)

type fakeNarrator struct {
	narrative  string
	lastResult *scoring.ScoreResult
	questions  []string
}

func (f *fakeNarrator) NarrateChurn(ctx context.Context, acct *account.Account, result scoring.ScoreResult) (string, error) {
	f.lastResult = &result
	return f.narrative, nil
}

func (f *fakeNarrator) NarrateExpansion(ctx context.Context, acct *account.Account, result scoring.ExpansionResult) (string, error) {
	return f.narrative, nil
}

func (f *fakeNarrator) Chat(ctx context.Context, acct *account.Account, latest *account.Snapshot, history []account.Prediction, question string) (string, error) {
	f.questions = append(f.questions, question)
	return f.narrative, nil
}

type fakeProducer struct {
	topics []string
	keys   []string
}

func (f *fakeProducer) Send(ctx context.Context, topic string, key, value []byte) error {
	f.topics = append(f.topics, topic)
	f.keys = append(f.keys, string(key))
	return nil
}

func (f *fakeProducer) SendJSON(ctx context.Context, topic string, key string, payload interface{}) error {
	f.topics = append(f.topics, topic)
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

type mapCache struct {
	entries map[string]scoring.ScoreResult
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]scoring.ScoreResult)}
}

func (c *mapCache) Get(ctx context.Context, key string) (scoring.ScoreResult, bool) {
	result, ok := c.entries[key]
	return result, ok
}

func (c *mapCache) Set(ctx context.Context, key string, result scoring.ScoreResult) error {
	c.entries[key] = result
	return nil
}

func (c *mapCache) Clear(ctx context.Context) error {
	c.entries = make(map[string]scoring.ScoreResult)
	return nil
}

func (c *mapCache) Stats() map[string]interface{} {
	return map[string]interface{}{"entries": len(c.entries)}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total int `json:"total"`
		Limit int `json:"limit"`
	} `json:"meta"`
}

func doRequest(t *testing.T, g *Gateway, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}

func newTestGateway(t *testing.T) (*Gateway, *store.MemoryStore, *fakeProducer, *fakeNarrator) {
	t.Helper()
	st := store.NewMemoryStore()
	producer := &fakeProducer{}
	narrator := &fakeNarrator{narrative: "test narrative"}
	g := NewGateway(DefaultGatewayConfig(), st, nil, producer, narrator, nil)
	return g, st, producer, narrator
}

func atRiskMetrics() scoring.MetricSet {
	return scoring.MetricSet{
		Usage30dChange:           scoring.Float(-0.35),
		ActiveUsers:              scoring.Int(12),
		LicensedSeats:            scoring.Int(50),
		DaysSinceLastMeeting:     scoring.Int(45),
		OpenCriticalTickets:      scoring.Int(3),
		CSATScoreCurrent:         scoring.Float(2.8),
		RenewalDaysOut:           scoring.Int(20),
		InvoicesOverdueCount:     scoring.Int(2),
		LastExecSponsorTouchDays: scoring.Int(70),
	}
}

func createAccount(t *testing.T, g *Gateway, name string) account.Account {
	t.Helper()
	rec, env := doRequest(t, g, "POST", "/api/v1/accounts", map[string]string{
		"name": name,
		"tier": "enterprise",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var acct account.Account
	require.NoError(t, json.Unmarshal(env.Data, &acct))
	require.NotEmpty(t, acct.ID)
	return acct
}

func TestAccountCRUD(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	acct := createAccount(t, g, "Globex Corp")
	assert.Equal(t, account.StatusActive, acct.Status)

	rec, env := doRequest(t, g, "GET", "/api/v1/accounts/"+acct.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched account.Account
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, "Globex Corp", fetched.Name)

	rec, _ = doRequest(t, g, "PUT", "/api/v1/accounts/"+acct.ID, map[string]string{
		"name": "Globex International",
		"tier": "enterprise",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doRequest(t, g, "GET", "/api/v1/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Total)

	rec, _ = doRequest(t, g, "DELETE", "/api/v1/accounts/"+acct.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doRequest(t, g, "GET", "/api/v1/accounts/"+acct.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestCreateAccount_RequiresName(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	rec, env := doRequest(t, g, "POST", "/api/v1/accounts", map[string]string{"tier": "smb"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_REQUEST", env.Error.Code)
}

func TestCreateSnapshot_RejectsInvalidMetrics(t *testing.T) {
	g, _, _, _ := newTestGateway(t)
	acct := createAccount(t, g, "Initech")

	rec, env := doRequest(t, g, "POST", "/api/v1/accounts/"+acct.ID+"/snapshots", CreateSnapshotRequest{
		Metrics: scoring.MetricSet{CSATScoreCurrent: scoring.Float(9.5)},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "csat_score_current")
}

func TestCreateSnapshot_UnknownAccount(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	rec, env := doRequest(t, g, "POST", "/api/v1/accounts/nope/snapshots", CreateSnapshotRequest{
		Metrics: scoring.MetricSet{Usage30dChange: scoring.Float(0.1)},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
}

func TestChurnPrediction_ScoresAndPersists(t *testing.T) {
	g, st, producer, _ := newTestGateway(t)
	acct := createAccount(t, g, "Initech")

	rec, env := doRequest(t, g, "POST", "/api/v1/predictions/churn", ChurnPredictionRequest{
		AccountID: acct.ID,
		Metrics:   atRiskMetrics(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChurnPredictionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 17, resp.Result.HealthScore)
	assert.Equal(t, scoring.TierHigh, resp.Result.RiskTier)
	assert.Len(t, resp.Result.Drivers, 3)
	assert.False(t, resp.Cached)

	preds, err := st.ListPredictions(context.Background(), acct.ID, 10)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, account.PredictionChurn, preds[0].Kind)

	require.Len(t, producer.topics, 1)
	assert.Equal(t, "score.churn.computed", producer.topics[0])
	assert.Equal(t, acct.ID, producer.keys[0])
}

func TestChurnPrediction_AdHocWithoutAccount(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	rec, env := doRequest(t, g, "POST", "/api/v1/predictions/churn", ChurnPredictionRequest{
		Metrics: scoring.MetricSet{Usage30dChange: scoring.Float(0.10)},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChurnPredictionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 23, resp.Result.HealthScore)
	assert.Equal(t, scoring.TierHigh, resp.Result.RiskTier)
}

func TestChurnPrediction_ValidationFailure(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	rec, env := doRequest(t, g, "POST", "/api/v1/predictions/churn", ChurnPredictionRequest{
		Metrics: scoring.MetricSet{NPSCurrent: scoring.Int(250)},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestChurnPrediction_MalformedBody(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	req := httptest.NewRequest("POST", "/api/v1/predictions/churn", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChurnPrediction_CacheRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	scoreCache := newMapCache()
	g := NewGateway(DefaultGatewayConfig(), st, scoreCache, nil, nil, nil)

	body := ChurnPredictionRequest{Metrics: atRiskMetrics()}

	_, env := doRequest(t, g, "POST", "/api/v1/predictions/churn", body)
	var first ChurnPredictionResponse
	require.NoError(t, json.Unmarshal(env.Data, &first))
	assert.False(t, first.Cached)

	_, env = doRequest(t, g, "POST", "/api/v1/predictions/churn", body)
	var second ChurnPredictionResponse
	require.NoError(t, json.Unmarshal(env.Data, &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.Result.HealthScore, second.Result.HealthScore)
}

func TestUpsellPrediction_RespectsAllowList(t *testing.T) {
	g, _, producer, _ := newTestGateway(t)

	rec, env := doRequest(t, g, "POST", "/api/v1/predictions/upsell", UpsellPredictionRequest{
		Metrics: scoring.UpsellMetrics{
			ActiveUsers:                scoring.Int(95),
			LicensedSeats:              scoring.Int(100),
			Usage30dChange:             scoring.Float(0.35),
			NPSCurrent:                 scoring.Int(50),
			CSATScoreCurrent:           scoring.Float(4.5),
			ActiveChampions:            scoring.Int(3),
			TeamSizeGrowth6mo:          scoring.Float(0.25),
			BudgetCycleProximityDays:   scoring.Int(30),
			TrainingSessionsAttended90: scoring.Int(2),
			SupportInteractions30d:     scoring.Int(4),
		},
		AvailableProducts: []string{scoring.ProductAdditionalSeats},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp UpsellPredictionResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, scoring.PotentialVeryHigh, resp.Result.ExpansionPotential)
	for _, p := range resp.Result.RecommendedProducts {
		assert.Equal(t, scoring.ProductAdditionalSeats, p.Product)
	}

	require.Len(t, producer.topics, 1)
	assert.Equal(t, "score.upsell.computed", producer.topics[0])
}

func TestChurnNarrative_UsesComputedResult(t *testing.T) {
	g, st, _, narrator := newTestGateway(t)
	acct := createAccount(t, g, "Initech")

	require.NoError(t, st.SaveSnapshot(context.Background(), &account.Snapshot{
		ID:        "snap-1",
		AccountID: acct.ID,
		Metrics:   atRiskMetrics(),
		Source:    "api",
	}))

	rec, env := doRequest(t, g, "POST", "/api/v1/accounts/"+acct.ID+"/narrative/churn", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp NarrativeResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "test narrative", resp.Narrative)

	require.NotNil(t, narrator.lastResult)
	assert.Equal(t, 17, narrator.lastResult.HealthScore)
}

func TestChurnNarrative_NoSnapshot(t *testing.T) {
	g, _, _, _ := newTestGateway(t)
	acct := createAccount(t, g, "Initech")

	rec, env := doRequest(t, g, "POST", "/api/v1/accounts/"+acct.ID+"/narrative/churn", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NO_SNAPSHOT", env.Error.Code)
}

func TestNarrative_UnavailableWithoutNarrator(t *testing.T) {
	st := store.NewMemoryStore()
	g := NewGateway(DefaultGatewayConfig(), st, nil, nil, nil, nil)

	rec, env := doRequest(t, g, "POST", "/api/v1/accounts/x/narrative/churn", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_CONFIGURED", env.Error.Code)
}

func TestChat_RequiresQuestion(t *testing.T) {
	g, _, _, _ := newTestGateway(t)
	acct := createAccount(t, g, "Initech")

	rec, env := doRequest(t, g, "POST", "/api/v1/accounts/"+acct.ID+"/chat", ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
}

func TestChat_AnswersQuestion(t *testing.T) {
	g, _, _, narrator := newTestGateway(t)
	acct := createAccount(t, g, "Initech")

	rec, env := doRequest(t, g, "POST", "/api/v1/accounts/"+acct.ID+"/chat", ChatRequest{
		Question: "Why is usage down?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "test narrative", resp.Answer)
	assert.Equal(t, []string{"Why is usage down?"}, narrator.questions)
}

func TestMetricsEndpoint(t *testing.T) {
	g, _, _, _ := newTestGateway(t)
	createAccount(t, g, "Initech")

	rec, env := doRequest(t, g, "GET", "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var metrics map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &metrics))
	assert.GreaterOrEqual(t, metrics["requests_total"].(float64), float64(1))
}

func TestCacheAdmin_UnavailableWithoutCache(t *testing.T) {
	g, _, _, _ := newTestGateway(t)

	rec, env := doRequest(t, g, "GET", "/api/v1/admin/cache/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_CONFIGURED", env.Error.Code)
}

func TestCacheAdmin_StatsAndClear(t *testing.T) {
	st := store.NewMemoryStore()
	scoreCache := newMapCache()
	g := NewGateway(DefaultGatewayConfig(), st, scoreCache, nil, nil, nil)

	doRequest(t, g, "POST", "/api/v1/predictions/churn", ChurnPredictionRequest{Metrics: atRiskMetrics()})

	rec, env := doRequest(t, g, "GET", "/api/v1/admin/cache/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, float64(1), stats["entries"])

	rec, _ = doRequest(t, g, "POST", "/api/v1/admin/cache/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, scoreCache.entries)
}
