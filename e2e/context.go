package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"memoledger/internal/authority"
	jwttoken "memoledger/internal/jwt_token"
	ledgerHandler "memoledger/internal/ledger/handler"
	"memoledger/internal/ledger/service"
	"memoledger/internal/ledger/store/kv"
	"memoledger/internal/platform/health"
	httptransport "memoledger/internal/transport/http"
	"memoledger/pkg/platform/middleware/request"
)

const (
	adminToken    = "e2e-admin-token"
	adminIdentity = "admin"
	signingKey    = "e2e-signing-key"
)

// TestContext holds state between test steps. Each scenario runs against its
// own in-process server over an in-memory store, with a clock the steps drive.
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	server *httptest.Server
	db     *kv.DB
	jwt    *jwttoken.JWTService

	mu  sync.Mutex
	now time.Time
}

// NewTestContext starts a fresh ledger server.
func NewTestContext() (*TestContext, error) {
	db, err := kv.Open(kv.Config{InMemory: true})
	if err != nil {
		return nil, err
	}
	program, err := authority.NewProgram([]byte("e2e-program-seed-0001"))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()

	tc := &TestContext{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		db:         db,
		jwt:        jwttoken.NewJWTService(signingKey, "memoledger", "memoledger", time.Hour),
		now:        time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC),
	}
	svc := service.New(db, program, service.WithLogger(logger))
	router := httptransport.NewRouter(httptransport.Deps{
		Ledger:     ledgerHandler.New(svc, adminIdentity, logger),
		Health:     health.New("e2e"),
		Callers:    tc.jwt,
		AdminToken: adminToken,
		Logger:     logger,
		Gatherer:   reg,
		Metrics:    request.NewMetrics(reg),
		Clock:      tc.Now,
	})
	tc.server = httptest.NewServer(router)
	tc.BaseURL = tc.server.URL
	return tc, nil
}

// Close stops the server and releases the store.
func (tc *TestContext) Close() error {
	tc.server.Close()
	return tc.db.Close()
}

// Now is the server clock.
func (tc *TestContext) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.now
}

// Advance moves the server clock forward.
func (tc *TestContext) Advance(d time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.now = tc.now.Add(d)
}

// CallerHeaders returns the bearer header identifying externalID.
func (tc *TestContext) CallerHeaders(externalID string) (map[string]string, error) {
	token, err := tc.jwt.GenerateCallerToken(context.Background(), externalID)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// AdminHeaders returns the admin token header.
func (tc *TestContext) AdminHeaders() map[string]string {
	return map[string]string{"X-Admin-Token": adminToken}
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body any) error {
	return tc.POSTWithHeaders(path, body, nil)
}

// POSTWithHeaders makes a POST request with optional headers
func (tc *TestContext) POSTWithHeaders(path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, tc.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req, headers)
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, tc.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return tc.do(req, headers)
}

func (tc *TestContext) do(req *http.Request, headers map[string]string) error {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a field from the JSON response. Dotted paths
// descend into nested objects, e.g. "balances.reward".
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	parts := strings.Split(field, ".")
	var value any = data
	for _, p := range parts {
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
		if value, ok = obj[p]; !ok {
			return nil, fmt.Errorf("field %s not found in response", field)
		}
	}
	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}
	_, err := tc.GetResponseField(text)
	return err == nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}
