// Stackprice - Personalization Pricing Engine
// Copyright 2026 Stackprice Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/stackprice/stackprice

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/stackprice/stackprice/internal/logging"
	"github.com/stackprice/stackprice/internal/metrics"
	"github.com/stackprice/stackprice/internal/pricing"
)

// Config holds configuration for the audit logger.
type Config struct {
	// Enabled controls whether decisions are recorded at all.
	Enabled bool `koanf:"enabled"`

	// BufferSize is the size of the async write buffer.
	BufferSize int `koanf:"buffer_size"`

	// WriteTimeout bounds each store write.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// RetentionDays is how long decisions are kept.
	RetentionDays int `koanf:"retention_days"`

	// CleanupInterval is how often retention cleanup runs.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		BufferSize:      1024,
		WriteTimeout:    5 * time.Second,
		RetentionDays:   90,
		CleanupInterval: 24 * time.Hour,
	}
}

// Logger records pricing decisions through a buffered channel and a single
// async writer goroutine. It implements pricing.AuditSink. When the buffer is
// full the event is dropped with a rate-limited warning; the request path is
// never blocked.
type Logger struct {
	config      *Config
	store       Store
	eventChan   chan *Decision
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	dropWarning *rate.Limiter
}

// NewLogger creates an audit logger and starts its async writer.
func NewLogger(store Store, config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}

	l := &Logger{
		config:    config,
		store:     store,
		eventChan: make(chan *Decision, config.BufferSize),
		stopChan:  make(chan struct{}),
		// At most one drop warning per 10s; the dropped counter carries
		// the real volume.
		dropWarning: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}

	l.wg.Add(1)
	go l.asyncWriter()

	return l
}

// RecordDecision implements pricing.AuditSink.
func (l *Logger) RecordDecision(userID, sessionID string, result *pricing.PricingResult) {
	if !l.config.Enabled || result == nil {
		return
	}

	names := make([]string, len(result.AppliedRules))
	for i, r := range result.AppliedRules {
		names[i] = r.RuleName
	}

	l.Log(&Decision{
		UserID:          userID,
		SessionID:       sessionID,
		ProductID:       result.ProductID,
		OriginalPrice:   result.OriginalPrice,
		AdjustedPrice:   result.AdjustedPrice,
		DiscountPercent: result.DiscountPercent,
		AppliedRules:    names,
		Confidence:      result.Confidence,
	})
}

// Log enqueues one decision. Non-blocking; drops when the buffer is full.
func (l *Logger) Log(d *Decision) {
	if !l.config.Enabled {
		return
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}

	select {
	case l.eventChan <- d:
	default:
		metrics.AuditEventsDropped.Inc()
		if l.dropWarning.Allow() {
			logging.Warn().Str("decision_id", d.ID).Msg("audit buffer full, dropping decisions")
		}
	}
}

// asyncWriter drains the buffer into the store.
func (l *Logger) asyncWriter() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopChan:
			// Drain remaining events before exit.
			for {
				select {
				case d := <-l.eventChan:
					l.writeDecision(d)
				default:
					return
				}
			}
		case d := <-l.eventChan:
			l.writeDecision(d)
		}
	}
}

func (l *Logger) writeDecision(d *Decision) {
	if l.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.config.WriteTimeout)
	defer cancel()

	if err := l.store.Save(ctx, d); err != nil {
		logging.Error().Err(err).Str("decision_id", d.ID).Msg("failed to save audit decision")
		return
	}
	metrics.AuditEventsWritten.Inc()
}

// Close stops the writer after draining buffered events.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
	l.wg.Wait()
	return nil
}

// Query retrieves decisions matching the filter.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Decision, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of decisions matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// StartCleanupRoutine runs retention cleanup until the context is canceled.
func (l *Logger) StartCleanupRoutine(ctx context.Context) {
	interval := l.config.CleanupInterval
	retention := l.config.RetentionDays
	if interval <= 0 || retention <= 0 || l.store == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().AddDate(0, 0, -retention)
				count, err := l.store.DeleteBefore(ctx, cutoff)
				if err != nil {
					logging.Error().Err(err).Msg("audit retention cleanup failed")
				} else if count > 0 {
					logging.Info().Int64("count", count).Msg("cleaned up old audit decisions")
				}
			}
		}
	}()
}
