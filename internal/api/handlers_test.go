package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zapponejosh/airac-api/internal/airac"
	"github.com/zapponejosh/airac-api/internal/config"
	"github.com/zapponejosh/airac-api/internal/database"
	"github.com/zapponejosh/airac-api/internal/logger"
	"github.com/zapponejosh/airac-api/internal/metrics"
)

// =============================================================================
// TEST SETUP HELPERS
// =============================================================================

const testAdminKey = "admin-test-key-32-characters-minimum-length"

type testEnv struct {
	db       *database.DB
	cfg      *config.Config
	handlers *Handlers
	router   http.Handler
}

// setupTest creates a fresh environment with an in-memory database and a
// clock fixed at 2022-05-23 12:00 UTC.
func setupTest(t *testing.T) *testEnv {
	t.Helper()

	log := logger.Discard()

	db, err := database.Open(database.DefaultConfig(":memory:"), log)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if _, err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Port:           8080,
		Env:            config.EnvDevelopment,
		DatabasePath:   ":memory:",
		AdminAPIKey:    testAdminKey,
		LogLevel:       "error",
		LogFormat:      "text",
		RolloverCron:   config.DefaultRolloverCron,
		MaxRangeCycles: 20,
	}

	h := NewHandlers(db, cfg, metrics.New(), log)
	h.now = func() time.Time { return time.Date(2022, time.May, 23, 12, 0, 0, 0, time.UTC) }

	return &testEnv{
		db:       db,
		cfg:      cfg,
		handlers: h,
		router:   SetupRoutes(h, cfg, log),
	}
}

// do sends a request through the full router.
func (env *testEnv) do(t *testing.T, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	return rr
}

// createKey stores a client API key and returns its plaintext.
func (env *testEnv) createKey(t *testing.T, name string) *database.NewAPIKey {
	t.Helper()
	key, err := env.db.CreateAPIKey(context.Background(), name)
	if err != nil {
		t.Fatalf("create api key: %v", err)
	}
	return key
}

type summaryResponse struct {
	Success bool          `json:"success"`
	Data    airac.Summary `json:"data"`
	Error   *ErrorInfo    `json:"error"`
}

type listResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Year   int             `json:"year"`
		Cycles []airac.Summary `json:"cycles"`
	} `json:"data"`
	Error *ErrorInfo `json:"error"`
}

func parseResponse(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v, body: %s", err, rr.Body.String())
	}
}

// =============================================================================
// CYCLE ENDPOINTS
// =============================================================================

func TestHealthCheck(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"current_cycle":"2205"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected CORS headers")
	}
}

func TestGetCurrentCycle(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/api/v1/cycles/current", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp summaryResponse
	parseResponse(t, rr, &resp)

	want := airac.Summary{Ident: "2205", Start: "2022-05-19", End: "2022-06-16", Year: 2022, Sequence: 5}
	if !resp.Success || resp.Data != want {
		t.Errorf("response = %+v, want %+v", resp, want)
	}
}

func TestGetDateCycles(t *testing.T) {
	env := setupTest(t)

	tests := []struct {
		path      string
		wantIdent string
		wantStart string
	}{
		{"/api/v1/cycles/date/2018-02-17", "1802", "2018-02-01"},
		{"/api/v1/cycles/date/2020-12-31", "2014", "2020-12-31"},
		{"/api/v1/cycles/date/2019-05-13", "1905", "2019-04-25"},
		{"/api/v1/cycles/date/2022-06-16", "2206", "2022-06-16"},
		{"/api/v1/cycles/date/2020-12-31/next", "2101", "2021-01-28"},
		{"/api/v1/cycles/date/2020-12-31/previous", "2013", "2020-12-03"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.path, nil, "")
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
			}

			var resp summaryResponse
			parseResponse(t, rr, &resp)
			if resp.Data.Ident != tt.wantIdent || resp.Data.Start != tt.wantStart {
				t.Errorf("got %+v, want ident %s start %s", resp.Data, tt.wantIdent, tt.wantStart)
			}
		})
	}
}

func TestGetDateCycle_InvalidDate(t *testing.T) {
	env := setupTest(t)

	for _, path := range []string{
		"/api/v1/cycles/date/2022-13-01",
		"/api/v1/cycles/date/yesterday",
		"/api/v1/cycles/date/2022-02-30/next",
	} {
		rr := env.do(t, http.MethodGet, path, nil, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rr.Code)
		}
	}
}

func TestGetYearCycles(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodGet, "/api/v1/cycles/year/2020", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp listResponse
	parseResponse(t, rr, &resp)
	if resp.Data.Year != 2020 || len(resp.Data.Cycles) != 14 {
		t.Fatalf("got year %d with %d cycles, want 2020 with 14", resp.Data.Year, len(resp.Data.Cycles))
	}
	if resp.Data.Cycles[0].Ident != "2001" || resp.Data.Cycles[13].Ident != "2014" {
		t.Errorf("first/last = %s/%s", resp.Data.Cycles[0].Ident, resp.Data.Cycles[13].Ident)
	}

	for _, bad := range []string{"abc", "0", "10000"} {
		if rr := env.do(t, http.MethodGet, "/api/v1/cycles/year/"+bad, nil, ""); rr.Code != http.StatusBadRequest {
			t.Errorf("year %q: status = %d, want 400", bad, rr.Code)
		}
	}
}

func TestGetRangeCycles(t *testing.T) {
	env := setupTest(t)
	key := env.createKey(t, "range-client")

	rr := env.do(t, http.MethodGet, "/api/v1/cycles/range?start=2022-05-23&end=2022-08-01", nil, key.Plaintext)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp listResponse
	parseResponse(t, rr, &resp)
	var idents []string
	for _, c := range resp.Data.Cycles {
		idents = append(idents, c.Ident)
	}
	if got := strings.Join(idents, ","); got != "2205,2206,2207" {
		t.Errorf("cycles = %s, want 2205,2206,2207", got)
	}
}

func TestGetRangeCycles_Validation(t *testing.T) {
	env := setupTest(t)
	key := env.createKey(t, "range-client")

	tests := []struct {
		name  string
		query string
	}{
		{"missing end", "start=2022-05-23"},
		{"bad start", "start=23-05-2022&end=2022-08-01"},
		{"bad end", "start=2022-05-23&end=soon"},
		{"reversed", "start=2022-08-01&end=2022-05-23"},
		{"too many cycles", "start=2000-01-01&end=2022-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, "/api/v1/cycles/range?"+tt.query, nil, key.Plaintext)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

// =============================================================================
// AUTH
// =============================================================================

func TestRangeRequiresAPIKey(t *testing.T) {
	env := setupTest(t)
	path := "/api/v1/cycles/range?start=2022-05-23&end=2022-06-01"

	if rr := env.do(t, http.MethodGet, path, nil, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rr.Code)
	}
	if rr := env.do(t, http.MethodGet, path, nil, "wrong"); rr.Code != http.StatusUnauthorized {
		t.Errorf("unknown key: status = %d, want 401", rr.Code)
	}

	key := env.createKey(t, "revoked-client")
	if err := env.db.RevokeAPIKey(context.Background(), key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if rr := env.do(t, http.MethodGet, path, nil, key.Plaintext); rr.Code != http.StatusUnauthorized {
		t.Errorf("revoked key: status = %d, want 401", rr.Code)
	}
}

func TestAuthMiddleware_StoresKeyInContext(t *testing.T) {
	env := setupTest(t)
	key := env.createKey(t, "ctx-client")

	handler := AuthMiddleware(env.db, logger.Discard())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := KeyFromContext(r.Context())
			if k == nil || k.ID != key.ID {
				t.Errorf("KeyFromContext() = %+v, want id %d", k, key.ID)
			}
			w.WriteHeader(http.StatusOK)
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(APIKeyHeader, key.Plaintext)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestAdminKeyLifecycle(t *testing.T) {
	env := setupTest(t)

	if rr := env.do(t, http.MethodGet, "/api/v1/admin/keys", nil, ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("list without admin key: status = %d, want 401", rr.Code)
	}

	rr := env.do(t, http.MethodPost, "/api/v1/admin/keys", map[string]string{"name": "ops"}, testAdminKey)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		Data database.NewAPIKey `json:"data"`
	}
	parseResponse(t, rr, &created)
	if created.Data.Plaintext == "" || created.Data.Name != "ops" {
		t.Fatalf("created = %+v", created.Data)
	}

	rr = env.do(t, http.MethodGet, "/api/v1/admin/keys", nil, testAdminKey)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"name":"ops"`) {
		t.Errorf("list: status %d body %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), created.Data.Plaintext) {
		t.Error("list must not expose plaintext keys")
	}

	path := fmt.Sprintf("/api/v1/admin/keys/%d", created.Data.ID)
	if rr := env.do(t, http.MethodDelete, path, nil, testAdminKey); rr.Code != http.StatusOK {
		t.Errorf("revoke: status = %d, want 200", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, path, nil, testAdminKey); rr.Code != http.StatusConflict {
		t.Errorf("second revoke: status = %d, want 409", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/v1/admin/keys/999", nil, testAdminKey); rr.Code != http.StatusNotFound {
		t.Errorf("revoke missing: status = %d, want 404", rr.Code)
	}
	if rr := env.do(t, http.MethodDelete, "/api/v1/admin/keys/abc", nil, testAdminKey); rr.Code != http.StatusBadRequest {
		t.Errorf("revoke bad id: status = %d, want 400", rr.Code)
	}
}

func TestCreateAPIKey_Validation(t *testing.T) {
	env := setupTest(t)

	if rr := env.do(t, http.MethodPost, "/api/v1/admin/keys", map[string]string{}, testAdminKey); rr.Code != http.StatusBadRequest {
		t.Errorf("empty name: status = %d, want 400", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys", strings.NewReader("{not json"))
	req.Header.Set(APIKeyHeader, testAdminKey)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", rr.Code)
	}
}

func TestAdminOnlyMiddleware_NoKeyConfigured(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		env  string
		want int
	}{
		{config.EnvDevelopment, http.StatusOK},
		{config.EnvStaging, http.StatusForbidden},
	}

	for _, tt := range tests {
		cfg := &config.Config{Env: tt.env}
		rr := httptest.NewRecorder()
		AdminOnlyMiddleware(cfg, logger.Discard())(ok).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != tt.want {
			t.Errorf("env %s: status = %d, want %d", tt.env, rr.Code, tt.want)
		}
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestCORSPreflight(t *testing.T) {
	env := setupTest(t)

	rr := env.do(t, http.MethodOptions, "/api/v1/cycles/current", nil, "")
	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(logger.Discard())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}),
	)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
}

func TestNotFoundAndMetrics(t *testing.T) {
	env := setupTest(t)

	if rr := env.do(t, http.MethodGet, "/api/v1/nope", nil, ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown route: status = %d, want 404", rr.Code)
	}

	env.do(t, http.MethodGet, "/api/v1/cycles/date/2022-05-23", nil, "")

	rr := env.do(t, http.MethodGet, "/metrics", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`airac_http_requests_total{method="GET",route="/api/v1/cycles/date/{date}",status="200"} 1`,
		`airac_cycle_lookups_total{kind="date"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
