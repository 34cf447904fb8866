package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/group03/phychat-backend/internal/chance"
	"github.com/group03/phychat-backend/internal/config"
	"github.com/group03/phychat-backend/internal/health"
	"github.com/group03/phychat-backend/internal/metrics"
	"github.com/group03/phychat-backend/internal/models"
	"github.com/group03/phychat-backend/internal/recommend"
	"github.com/group03/phychat-backend/internal/storage"
	"github.com/group03/phychat-backend/internal/tutor"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type testEnv struct {
	server  *Server
	repo    *storage.MemoryRepository
	history *storage.MemoryHistoryStore
}

func testConfig() *config.Config {
	return &config.Config{
		CORS:    config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		History: config.HistoryConfig{Limit: 5, MaxMessages: 100},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config, mutate func(*Dependencies)) *testEnv {
	t.Helper()

	repo := storage.NewMemoryRepository()
	history := storage.NewMemoryHistoryStore(cfg.History.MaxMessages)
	deps := Dependencies{
		Recommender: recommend.NewEngine(repo, storage.NewProgressStore(repo, nil), chance.New(7)),
		Tutor:       tutor.NewEngine(true, chance.New(7)),
		History:     history,
	}
	if mutate != nil {
		mutate(&deps)
	}

	return &testEnv{
		server:  NewServer(cfg, deps),
		repo:    repo,
		history: history,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader = http.NoBody
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestServiceEndpoints(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	tests := []struct {
		path   string
		status string
	}{
		{"/", "running"},
		{"/health", "healthy"},
		{"/api/health", "healthy"},
		{"/ready", "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, body := env.do(t, http.MethodGet, tt.path, nil, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.True(t, body.Success)

			var data map[string]interface{}
			decodeData(t, body, &data)
			assert.Equal(t, tt.status, data["status"])
		})
	}
}

type fakeReadiness struct {
	ready    bool
	statuses []health.Status
}

func (f fakeReadiness) Ready() (bool, []health.Status) {
	return f.ready, f.statuses
}

func TestReadyReportsDependencies(t *testing.T) {
	env := newTestEnv(t, testConfig(), func(d *Dependencies) {
		d.Readiness = fakeReadiness{
			ready:    false,
			statuses: []health.Status{{Name: "redis", Healthy: false, Error: "connection refused"}},
		}
	})

	rec, body := env.do(t, http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, body.Success)

	var data struct {
		Status       string          `json:"status"`
		Dependencies []health.Status `json:"dependencies"`
	}
	decodeData(t, body, &data)
	assert.Equal(t, "not_ready", data.Status)
	require.Len(t, data.Dependencies, 1)
	assert.Equal(t, "connection refused", data.Dependencies[0].Error)
}

func TestChat(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	tests := []struct {
		name      string
		body      interface{}
		wantCode  int
		wantError string
		wantType  models.ErrorType
	}{
		{
			name:     "index error",
			body:     map[string]interface{}{"user_id": "s1", "message": "why?", "code_snippet": "for i in range(4):\n    print(numbers[i])"},
			wantCode: http.StatusOK,
			wantType: models.IndexError,
		},
		{
			name:     "no code",
			body:     map[string]interface{}{"user_id": "s1", "message": "hello"},
			wantCode: http.StatusOK,
			wantType: models.LogicError,
		},
		{
			name:     "empty message",
			body:     map[string]interface{}{"user_id": "s1", "message": ""},
			wantCode: http.StatusOK,
			wantType: models.LogicError,
		},
		{
			name:      "missing user",
			body:      map[string]interface{}{"message": "hello"},
			wantCode:  http.StatusBadRequest,
			wantError: "validation_error",
		},
		{
			name:      "invalid json",
			body:      "{not json",
			wantCode:  http.StatusBadRequest,
			wantError: "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/api/chat", tt.body, nil)
			require.Equal(t, tt.wantCode, rec.Code)

			if tt.wantError != "" {
				require.NotNil(t, body.Error)
				assert.Equal(t, tt.wantError, body.Error.Code)
				return
			}

			var resp models.TutorResponse
			decodeData(t, body, &resp)
			assert.Equal(t, tt.wantType, resp.ErrorType)
			assert.NotEmpty(t, resp.Reply)
			assert.GreaterOrEqual(t, resp.ConfidenceScore, tutor.MinConfidence)
			assert.LessOrEqual(t, resp.ConfidenceScore, tutor.MaxConfidence)
		})
	}
}

func TestChatModelNotLoaded(t *testing.T) {
	env := newTestEnv(t, testConfig(), func(d *Dependencies) {
		d.Tutor = tutor.NewEngine(false, chance.New(1))
	})

	rec, body := env.do(t, http.MethodPost, "/api/chat", map[string]string{"user_id": "s1", "message": "hi"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "model_unavailable", body.Error.Code)
}

func TestChatSavesConversation(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec, _ := env.do(t, http.MethodPost, "/api/chat", map[string]string{
		"user_id":         "s1",
		"message":         "what is wrong?",
		"code_snippet":    "print(i)",
		"conversation_id": "conv-1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	history, err := env.history.GetConversationHistory(context.Background(), "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "what is wrong?", history[0].Content)
	assert.Equal(t, "print(i)", history[0].CodeSnippet)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
	assert.Contains(t, history[1].Content, "outside its scope")
}

type brokenHistory struct{}

func (brokenHistory) GetConversationHistory(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	return nil, errors.New("redis: connection refused")
}

func (brokenHistory) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	return errors.New("redis: connection refused")
}

func (brokenHistory) Ping(ctx context.Context) error { return errors.New("down") }
func (brokenHistory) Close() error                   { return nil }

func TestChatHistoryFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t, testConfig(), func(d *Dependencies) {
		d.History = brokenHistory{}
	})

	rec, body := env.do(t, http.MethodPost, "/api/chat", map[string]string{
		"user_id":         "s1",
		"message":         "help",
		"conversation_id": "conv-1",
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
}

func TestExplainEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec, body := env.do(t, http.MethodPost, "/api/xai/explain", map[string]string{
		"code_snippet":     "for i in range(3):\n    x=1\n    if x:\n        pass",
		"model_prediction": "IndexError",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Explanation
	decodeData(t, body, &resp)
	assert.Equal(t, []int{1, 3}, resp.HighlightedLines)
	assert.Equal(t, 0.85, resp.FeatureImportance["loop_range"])

	rec, body = env.do(t, http.MethodPost, "/api/xai/explain", map[string]string{"code_snippet": ""}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body.Data), `"highlighted_lines":[]`)
}

func TestRecommendEndpoints(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec, body := env.do(t, http.MethodPost, "/api/recommend", map[string]string{"user_id": "s1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var first models.Recommendation
	decodeData(t, body, &first)
	assert.Equal(t, models.DifficultyEasy, first.Difficulty)

	rec, body = env.do(t, http.MethodGet, "/api/recommend/s1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var second models.Recommendation
	decodeData(t, body, &second)
	assert.Equal(t, models.DifficultyEasy, second.Difficulty)

	rec, body = env.do(t, http.MethodPost, "/api/recommend", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", body.Error.Code)
}

func TestProgressFlow(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	// one via JSON, one via query parameters
	rec, body := env.do(t, http.MethodPost, "/api/progress/update", map[string]interface{}{
		"user_id": "s1", "challenge_id": "1", "success": true, "time_spent": 120,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var update models.ProgressUpdateResponse
	decodeData(t, body, &update)
	assert.Equal(t, "success", update.Status)
	assert.True(t, update.Recorded)
	assert.NotEmpty(t, update.AckID)

	rec, _ = env.do(t, http.MethodPost, "/api/progress/update?user_id=s1&challenge_id=2&success=true&time_spent=30", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = env.do(t, http.MethodGet, "/api/students/s1/progress", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var progress models.StudentProgressResponse
	decodeData(t, body, &progress)
	assert.True(t, progress.Available)
	assert.Len(t, progress.Records, 2)

	// two completed moves the student to Medium
	for i := 0; i < 10; i++ {
		_, body = env.do(t, http.MethodGet, "/api/recommend/s1", nil, nil)
		var next models.Recommendation
		decodeData(t, body, &next)
		assert.Equal(t, models.DifficultyMedium, next.Difficulty)
		assert.NotContains(t, []string{"1", "2"}, next.ChallengeID)
	}
}

func TestProgressUpdateValidation(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	tests := []struct {
		name     string
		path     string
		body     interface{}
		wantCode string
	}{
		{"missing user", "/api/progress/update", map[string]interface{}{"challenge_id": "1"}, "validation_error"},
		{"missing challenge", "/api/progress/update", map[string]interface{}{"user_id": "s1"}, "validation_error"},
		{"negative time", "/api/progress/update", map[string]interface{}{"user_id": "s1", "challenge_id": "1", "time_spent": -1}, "validation_error"},
		{"bad json", "/api/progress/update", "{", "invalid_request"},
		{"bad query bool", "/api/progress/update?user_id=s1&challenge_id=1&success=maybe", nil, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestProgressUpdateUnknownChallengeIsDegraded(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec, body := env.do(t, http.MethodPost, "/api/progress/update", map[string]interface{}{
		"user_id": "s1", "challenge_id": "404", "success": true,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var update models.ProgressUpdateResponse
	decodeData(t, body, &update)
	assert.Equal(t, "degraded", update.Status)
	assert.False(t, update.Recorded)
	assert.Empty(t, update.AckID)
}

func TestListChallenges(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	rec, body := env.do(t, http.MethodGet, "/api/challenges", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Challenges []models.Challenge `json:"challenges"`
		Total      int                `json:"total"`
	}
	decodeData(t, body, &data)
	assert.Equal(t, 6, data.Total)
	assert.Equal(t, "1", data.Challenges[0].ID)
}

type panickingRecommender struct {
	Recommender
}

func (panickingRecommender) Recommend(ctx context.Context, studentID string) *models.Recommendation {
	panic("unexpected")
}

func TestRecommendPanicBecomesServerError(t *testing.T) {
	env := newTestEnv(t, testConfig(), func(d *Dependencies) {
		d.Recommender = panickingRecommender{Recommender: d.Recommender}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/recommend/s1", nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthentication(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.APIKeys = []string{"sk_test_123456789"}
	env := newTestEnv(t, cfg, nil)

	tests := []struct {
		name     string
		path     string
		headers  map[string]string
		wantCode int
	}{
		{"missing key", "/api/challenges", nil, http.StatusUnauthorized},
		{"wrong key", "/api/challenges", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"bearer", "/api/challenges", map[string]string{"Authorization": "Bearer sk_test_123456789"}, http.StatusOK},
		{"raw authorization", "/api/challenges", map[string]string{"Authorization": "sk_test_123456789"}, http.StatusOK},
		{"x-api-key", "/api/challenges", map[string]string{"X-API-Key": "sk_test_123456789"}, http.StatusOK},
		{"query", "/api/challenges?api_key=sk_test_123456789", nil, http.StatusOK},
		{"public health", "/health", nil, http.StatusOK},
		{"public root", "/", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := env.do(t, http.MethodGet, tt.path, nil, tt.headers)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.APIKeys = []string{"sk_test_123456789"}
	env := newTestEnv(t, cfg, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig(), func(d *Dependencies) {
		d.Metrics = metrics.NewMetrics()
	})

	env.do(t, http.MethodGet, "/api/recommend/s1", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `phychat_http_requests_total{method="GET",route="/api/recommend/{studentID}",status="200"}`)
	assert.Contains(t, rec.Body.String(), `phychat_recommendations_total{difficulty="Easy"}`)
}

func TestChatRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.ChatPerSecond = 1
	env := newTestEnv(t, cfg, nil)
	defer env.server.Close()

	codes := map[int]int{}
	for i := 0; i < 20; i++ {
		rec, _ := env.do(t, http.MethodPost, "/api/chat", map[string]string{"user_id": "s1", "message": "hi"}, nil)
		codes[rec.Code]++
	}

	assert.Positive(t, codes[http.StatusOK])
	assert.Positive(t, codes[http.StatusTooManyRequests])

	// other endpoints are not limited
	rec, _ := env.do(t, http.MethodGet, "/api/challenges", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.ChatPerSecond = 1
	env := newTestEnv(t, cfg, nil)
	defer env.server.Close()

	limited := 0
	for i := 0; i < 20; i++ {
		headers := map[string]string{"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1)}
		rec, _ := env.do(t, http.MethodPost, "/api/chat", map[string]string{"user_id": "s1", "message": "hi"}, headers)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Positive(t, limited, "rotating X-Forwarded-For must not reset the limit")
}

func TestChatRateLimitTrustedProxy(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.ChatPerSecond = 1
	cfg.Server.TrustProxy = true
	env := newTestEnv(t, cfg, nil)
	defer env.server.Close()

	for i := 0; i < 20; i++ {
		headers := map[string]string{"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i+1)}
		rec, _ := env.do(t, http.MethodPost, "/api/chat", map[string]string{"user_id": "s1", "message": "hi"}, headers)
		require.Equal(t, http.StatusOK, rec.Code, "each forwarded client has its own budget")
	}
}

func TestRequestBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	huge := `{"user_id":"s1","message":"` + strings.Repeat("a", maxBodyBytes+1) + `"}`

	for _, path := range []string{"/api/chat", "/api/xai/explain", "/api/recommend", "/api/progress/update"} {
		t.Run(path, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, path, huge, nil)
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, "request_too_large", body.Error.Code)
		})
	}

	// a body just under the cap is still accepted
	ok := `{"user_id":"s1","message":"` + strings.Repeat("a", maxBodyBytes-64) + `"}`
	rec, _ := env.do(t, http.MethodPost, "/api/chat", ok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecommendAfterEveryChallenge(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	challenges, err := env.repo.GetAllChallenges(context.Background())
	require.NoError(t, err)

	for _, c := range challenges {
		rec, body := env.do(t, http.MethodPost, "/api/progress/update", map[string]interface{}{
			"user_id": "s9", "challenge_id": c.ID, "success": true, "time_spent": 30,
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, body.Success)
	}

	rec, body := env.do(t, http.MethodGet, "/api/recommend/s9", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Recommendation
	decodeData(t, body, &got)
	assert.True(t, got.IsTerminal())
	assert.Equal(t, models.DifficultyExpert, got.Difficulty)
	assert.Equal(t, 1.0, got.Confidence)
}
