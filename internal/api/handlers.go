// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/stackprice/stackprice/internal/audit"
	"github.com/stackprice/stackprice/internal/logging"
	"github.com/stackprice/stackprice/internal/pricing"
)

// Handler implements the pricing API endpoints.
type Handler struct {
	engine    *pricing.Engine
	snapshots *pricing.SnapshotStore
	auditLog  *audit.Logger
	startedAt time.Time
}

// NewHandler creates the API handler. auditLog may be nil when audit is
// disabled; the audit endpoints then return 503.
func NewHandler(engine *pricing.Engine, snapshots *pricing.SnapshotStore, auditLog *audit.Logger) *Handler {
	return &Handler{
		engine:    engine,
		snapshots: snapshots,
		auditLog:  auditLog,
		startedAt: time.Now(),
	}
}

// CalculatePrice handles POST /api/v1/pricing/calculate.
func (h *Handler) CalculatePrice(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req CalculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}

	result, err := h.engine.CalculatePrice(r.Context(), req.Product, req.Context)
	if err != nil {
		// The engine surfaces only malformed-product errors; everything
		// upstream degrades internally.
		rw.ValidationError("invalid product", err.Error())
		return
	}

	rw.Success(result)
}

// CalculateBatch handles POST /api/v1/pricing/batch.
func (h *Handler) CalculateBatch(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		rw.ValidationError("invalid batch request", err.Error())
		return
	}

	results := h.engine.CalculateBatch(r.Context(), req.Products, req.Context)

	var skipped []string
	for i := range req.Products {
		if _, ok := results[req.Products[i].ID]; !ok {
			skipped = append(skipped, req.Products[i].ID)
		}
	}

	rw.Success(&BatchResponse{
		Results:   results,
		Requested: len(req.Products),
		Priced:    len(results),
		Skipped:   skipped,
	})
}

// UpdateMarketData handles PUT /api/v1/market-data.
func (h *Handler) UpdateMarketData(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req MarketDataRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		rw.ValidationError("invalid market data", err.Error())
		return
	}

	h.engine.UpdateMarketData(req.DemandScores)
	logging.Ctx(r.Context()).Info().Int("scores", len(req.DemandScores)).Msg("market data updated")

	rw.Success(map[string]interface{}{
		"updated": len(req.DemandScores),
	})
}

// RefreshRules handles POST /api/v1/pricing/rules/refresh. It requests an
// out-of-band snapshot refresh and returns immediately.
func (h *Handler) RefreshRules(w http.ResponseWriter, r *http.Request) {
	h.engine.Invalidate()
	WriteSuccess(w, r, map[string]interface{}{
		"refresh_requested": true,
	})
}

// QueryAuditDecisions handles GET /api/v1/audit/decisions.
func (h *Handler) QueryAuditDecisions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.auditLog == nil {
		rw.ServiceUnavailable("audit logging is disabled")
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	decisions, err := h.auditLog.Query(r.Context(), filter)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("audit query failed")
		rw.InternalError("audit query failed")
		return
	}

	rw.Success(map[string]interface{}{
		"decisions": decisions,
		"count":     len(decisions),
	})
}

// AuditStats handles GET /api/v1/audit/stats.
func (h *Handler) AuditStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.auditLog == nil {
		rw.ServiceUnavailable("audit logging is disabled")
		return
	}

	count, err := h.auditLog.Count(r.Context(), audit.QueryFilter{})
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("audit count failed")
		rw.InternalError("audit count failed")
		return
	}

	rw.Success(map[string]interface{}{
		"total_decisions": count,
	})
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	loadedAt := h.snapshots.LoadedAt()

	WriteSuccess(w, r, map[string]interface{}{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(h.startedAt).Seconds()),
		"rules_loaded":    len(h.snapshots.Rules()),
		"rules_loaded_at": loadedAt,
	})
}

// HealthLive handles GET /api/v1/health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{"status": "ok"})
}

// HealthReady handles GET /api/v1/health/ready. The engine is ready once the
// initial rule snapshot load has been attempted.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.snapshots.LoadedAt().IsZero() {
		rw.ServiceUnavailable("rule snapshot not loaded")
		return
	}
	rw.Success(map[string]interface{}{"status": "ready"})
}

// parseAuditFilter builds an audit query filter from URL parameters.
func parseAuditFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()

	filter := audit.QueryFilter{
		UserID:    q.Get("user_id"),
		ProductID: q.Get("product_id"),
		Limit:     100,
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 1000 {
			return filter, &filterError{"limit must be an integer in [1,1000]"}
		}
		filter.Limit = limit
	}
	if raw := q.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, &filterError{"since must be RFC 3339"}
		}
		filter.Since = since
	}
	if raw := q.Get("until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, &filterError{"until must be RFC 3339"}
		}
		filter.Until = until
	}

	return filter, nil
}

type filterError struct {
	msg string
}

func (e *filterError) Error() string { return e.msg }
