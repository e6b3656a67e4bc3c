// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/stackprice/stackprice/internal/audit"
	"github.com/stackprice/stackprice/internal/pricing"
	"github.com/stackprice/stackprice/internal/store"
)

// envelope mirrors APIResponse with a raw payload for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

type failingRuleSource struct{}

func (failingRuleSource) ListActiveRules(_ context.Context) ([]pricing.PricingRule, error) {
	return nil, errors.New("rule store down")
}

func newTestServer(t *testing.T, rules []pricing.PricingRule, auditLog *audit.Logger) http.Handler {
	t.Helper()

	source := store.NewMemoryRuleStore(rules)
	snapshots := pricing.NewSnapshotStore(context.Background(), source, time.Second, zerolog.Nop())
	market := pricing.NewMarketData(nil, zerolog.Nop())

	engine, err := pricing.NewEngine(pricing.DefaultConfig(), snapshots, market, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	mw := NewMiddleware(&MiddlewareConfig{RateLimitDisabled: true})
	return NewRouter(NewHandler(engine, snapshots, auditLog), mw).Setup()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, *envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not an API envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return rec, &env
}

const validCalculateBody = `{
	"product": {"id": "prod-1", "base_price": 100, "estimated_cost": 40, "demand_score": 0.75},
	"context": {"user_id": "u1"}
}`

func TestCalculateEndpoint(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/pricing/calculate", validCalculateBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if !env.Success {
		t.Fatal("Success = false")
	}

	var result pricing.PricingResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.ProductID != "prod-1" {
		t.Errorf("ProductID = %s", result.ProductID)
	}
	if result.AdjustedPrice != 100 {
		t.Errorf("AdjustedPrice = %v, want 100 with no rules and neutral demand", result.AdjustedPrice)
	}
	if env.Meta == nil || env.Meta.RequestID == "" {
		t.Error("meta should carry a request ID")
	}
}

func TestCalculateEndpointErrors(t *testing.T) {
	h := newTestServer(t, nil, nil)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"product":`, ErrCodeBadRequest},
		{"unknown field", `{"product": {"id": "p", "base_price": 1, "estimated_cost": 1}, "bogus": true}`, ErrCodeBadRequest},
		{"invalid product", `{"product": {"id": "p", "base_price": 100}, "context": {}}`, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doJSON(t, h, http.MethodPost, "/api/v1/pricing/calculate", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}
}

func TestBatchEndpoint(t *testing.T) {
	h := newTestServer(t, nil, nil)

	body := `{
		"products": [
			{"id": "good-1", "base_price": 100, "estimated_cost": 40, "demand_score": 0.75},
			{"id": "bad", "base_price": 100, "demand_score": 0.75},
			{"id": "good-2", "base_price": 50, "estimated_cost": 20, "demand_score": 0.75}
		],
		"context": {"user_id": "u1"}
	}`

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/pricing/batch", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp BatchResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decoding batch response: %v", err)
	}
	if resp.Requested != 3 || resp.Priced != 2 {
		t.Errorf("Requested/Priced = %d/%d, want 3/2", resp.Requested, resp.Priced)
	}
	if len(resp.Skipped) != 1 || resp.Skipped[0] != "bad" {
		t.Errorf("Skipped = %v, want [bad]", resp.Skipped)
	}
	if _, ok := resp.Results["good-1"]; !ok {
		t.Error("good-1 missing from results")
	}
}

func TestBatchEndpointEmptyProducts(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/pricing/batch", `{"products": [], "context": {}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestMarketDataEndpoint(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec, env := doJSON(t, h, http.MethodPut, "/api/v1/market-data/",
		`{"demand_scores": {"minimalist": 0.95, "rustic": 0.4}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var data map[string]int
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if data["updated"] != 2 {
		t.Errorf("updated = %d, want 2", data["updated"])
	}

	t.Run("empty scores rejected", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodPut, "/api/v1/market-data/", `{"demand_scores": {}}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestRefreshRulesEndpoint(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/pricing/rules/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !env.Success {
		t.Error("Success = false")
	}
}

func TestAuditEndpointsDisabled(t *testing.T) {
	h := newTestServer(t, nil, nil)

	for _, path := range []string{"/api/v1/audit/decisions", "/api/v1/audit/stats"} {
		rec, env := doJSON(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, rec.Code)
		}
		if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
			t.Errorf("%s: error = %+v", path, env.Error)
		}
	}
}

func TestAuditEndpoints(t *testing.T) {
	auditStore := audit.NewMemoryStore(0)
	auditLog := audit.NewLogger(auditStore, audit.DefaultConfig())
	t.Cleanup(func() { _ = auditLog.Close() })

	auditLog.Log(&audit.Decision{UserID: "u1", ProductID: "p1", OriginalPrice: 100, AdjustedPrice: 90})
	auditLog.Log(&audit.Decision{UserID: "u2", ProductID: "p2", OriginalPrice: 50, AdjustedPrice: 50})

	// The writer is async; give it a moment to drain.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if n, _ := auditStore.Count(context.Background(), audit.QueryFilter{}); n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("audit writer did not drain")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h := newTestServer(t, nil, auditLog)

	t.Run("decisions filtered by user", func(t *testing.T) {
		rec, env := doJSON(t, h, http.MethodGet, "/api/v1/audit/decisions?user_id=u1", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; body: %s", rec.Code, rec.Body.String())
		}
		var data struct {
			Decisions []audit.Decision `json:"decisions"`
			Count     int              `json:"count"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decoding data: %v", err)
		}
		if data.Count != 1 || len(data.Decisions) != 1 || data.Decisions[0].UserID != "u1" {
			t.Errorf("data = %+v", data)
		}
	})

	t.Run("bad limit rejected", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodGet, "/api/v1/audit/decisions?limit=9999", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("bad since rejected", func(t *testing.T) {
		rec, _ := doJSON(t, h, http.MethodGet, "/api/v1/audit/decisions?since=yesterday", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec, env := doJSON(t, h, http.MethodGet, "/api/v1/audit/stats", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var data map[string]int64
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decoding data: %v", err)
		}
		if data["total_decisions"] != 2 {
			t.Errorf("total_decisions = %d, want 2", data["total_decisions"])
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestServer(t, nil, nil)

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready"} {
		rec, env := doJSON(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
		if !env.Success {
			t.Errorf("%s: Success = false", path)
		}
	}
}

func TestHealthReadyBeforeFirstLoad(t *testing.T) {
	snapshots := pricing.NewSnapshotStore(context.Background(), failingRuleSource{}, time.Second, zerolog.Nop())
	market := pricing.NewMarketData(nil, zerolog.Nop())
	engine, err := pricing.NewEngine(pricing.DefaultConfig(), snapshots, market, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	mw := NewMiddleware(&MiddlewareConfig{RateLimitDisabled: true})
	h := NewRouter(NewHandler(engine, snapshots, nil), mw).Setup()

	rec, _ := doJSON(t, h, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 before a successful rule load", rec.Code)
	}
}
