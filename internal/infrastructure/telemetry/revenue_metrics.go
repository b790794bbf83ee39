// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RevenueMetrics provides revenue engine metrics. It tracks allocation run
// activity and the backlog of open obligations and unapplied change orders.
type RevenueMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	allocationRunTotal *Counter

	// Histogram metrics
	allocationRunDuration *Histogram

	// Gauge metrics (point-in-time values)
	openObligationCount *Gauge
	pendingChangeOrders *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	obligationProvider ObligationStatsProvider
}

// ObligationStatsProvider provides obligation data for periodic metrics
// collection. The interface lets the telemetry layer query obligation state
// without depending on the revenue domain directly.
type ObligationStatsProvider interface {
	// GetOpenObligationCount returns the number of OPEN performance obligations for a tenant
	GetOpenObligationCount(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// GetPendingChangeOrderCount returns the number of DRAFT change orders for a tenant
	GetPendingChangeOrderCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// RevenueMetricsConfig holds configuration for revenue metrics.
type RevenueMetricsConfig struct {
	Meter              metric.Meter
	Logger             *zap.Logger
	CollectInterval    time.Duration // Default: 5 minutes
	ObligationProvider ObligationStatsProvider
}

// NewRevenueMetrics creates a new RevenueMetrics instance.
func NewRevenueMetrics(cfg RevenueMetricsConfig) (*RevenueMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rm := &RevenueMetrics{
		meter:              cfg.Meter,
		logger:             logger,
		stopChan:           make(chan struct{}),
		obligationProvider: cfg.ObligationProvider,
	}

	var err error

	rm.allocationRunTotal, err = NewCounter(
		cfg.Meter,
		"revenue_allocation_run_total",
		"Total number of allocation runs",
		"{runs}",
	)
	if err != nil {
		return nil, err
	}

	rm.allocationRunDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "revenue_allocation_run_duration_seconds",
		Description: "Allocation run latency distribution in seconds",
		Unit:        "s",
		Boundaries:  AllocationDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	rm.openObligationCount, err = NewGauge(
		cfg.Meter,
		"revenue_open_obligation_count",
		"Current number of open performance obligations",
		"{obligations}",
	)
	if err != nil {
		return nil, err
	}

	rm.pendingChangeOrders, err = NewGauge(
		cfg.Meter,
		"revenue_pending_change_order_count",
		"Current number of draft change orders awaiting apply",
		"{orders}",
	)
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// =============================================================================
// Allocation Metrics
// =============================================================================

// RecordRun records one allocation run outcome. It satisfies the application
// layer's AllocationMetrics port.
func (rm *RevenueMetrics) RecordRun(ctx context.Context, strategy string, succeeded bool, millis int64) {
	result := "success"
	if !succeeded {
		result = "failure"
	}
	attrs := []attribute.KeyValue{
		AttrStrategy.String(strategy),
		AttrResult.String(result),
	}
	rm.allocationRunTotal.Inc(ctx, attrs...)
	rm.allocationRunDuration.Record(ctx, float64(millis)/1000.0, attrs...)
}

// =============================================================================
// Obligation Backlog Gauges
// =============================================================================

// RecordOpenObligationCount records the current number of open obligations.
// This is a gauge metric that should be updated periodically.
func (rm *RevenueMetrics) RecordOpenObligationCount(ctx context.Context, tenantID uuid.UUID, count int64) {
	rm.openObligationCount.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
	)
}

// RecordPendingChangeOrderCount records the number of draft change orders.
// This is a gauge metric that should be updated periodically.
func (rm *RevenueMetrics) RecordPendingChangeOrderCount(ctx context.Context, tenantID uuid.UUID, count int64) {
	rm.pendingChangeOrders.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects obligation backlog metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (rm *RevenueMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	rm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go rm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

func (rm *RevenueMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	rm.collectObligationMetrics(ctx, tenantProvider)

	for {
		select {
		case <-rm.stopChan:
			rm.logger.Info("Stopping periodic revenue metrics collection")
			return
		case <-ctx.Done():
			rm.logger.Info("Context cancelled, stopping periodic revenue metrics collection")
			return
		case <-ticker.C:
			rm.collectObligationMetrics(ctx, tenantProvider)
		}
	}
}

func (rm *RevenueMetrics) collectObligationMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if rm.obligationProvider == nil {
		rm.logger.Debug("No obligation provider configured, skipping backlog metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		rm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		rm.collectTenantObligationMetrics(ctx, tenantID)
	}
}

func (rm *RevenueMetrics) collectTenantObligationMetrics(ctx context.Context, tenantID uuid.UUID) {
	openCount, err := rm.obligationProvider.GetOpenObligationCount(ctx, tenantID)
	if err != nil {
		rm.logger.Warn("Failed to get open obligation count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		rm.RecordOpenObligationCount(ctx, tenantID, openCount)
	}

	pendingCount, err := rm.obligationProvider.GetPendingChangeOrderCount(ctx, tenantID)
	if err != nil {
		rm.logger.Warn("Failed to get pending change order count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		rm.RecordPendingChangeOrderCount(ctx, tenantID, pendingCount)
	}
}

// Stop stops the periodic collection.
func (rm *RevenueMetrics) Stop() {
	rm.stopOnce.Do(func() {
		close(rm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewRevenueMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
