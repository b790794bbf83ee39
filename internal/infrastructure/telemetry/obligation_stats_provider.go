// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormObligationStatsProvider implements ObligationStatsProvider using GORM.
// It queries revenue tables directly for aggregated backlog counts.
type GormObligationStatsProvider struct {
	db *gorm.DB
}

// NewGormObligationStatsProvider creates a new GormObligationStatsProvider.
func NewGormObligationStatsProvider(db *gorm.DB) *GormObligationStatsProvider {
	return &GormObligationStatsProvider{db: db}
}

// GetOpenObligationCount returns the number of OPEN performance obligations for a tenant.
func (p *GormObligationStatsProvider) GetOpenObligationCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("performance_obligations").
		Where("tenant_id = ? AND status = ?", tenantID, "OPEN").
		Count(&count).Error

	return count, err
}

// GetPendingChangeOrderCount returns the number of DRAFT change orders for a tenant.
func (p *GormObligationStatsProvider) GetPendingChangeOrderCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("change_orders").
		Where("tenant_id = ? AND status = ?", tenantID, "DRAFT").
		Count(&count).Error

	return count, err
}

// GormTenantProvider implements TenantProvider using GORM. Tenants are derived
// from the obligations table since the engine carries no tenant registry of
// its own.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns the distinct tenant IDs with any performance obligations.
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("performance_obligations").
		Distinct("tenant_id").
		Find(&ids).Error

	return ids, err
}
