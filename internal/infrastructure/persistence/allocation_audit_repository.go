package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormAllocationAuditRepository implements AllocationAuditRepository using
// GORM. Audit rows are write-once; only Create is exposed for writes.
type GormAllocationAuditRepository struct {
	db *gorm.DB
}

// NewGormAllocationAuditRepository creates a new GormAllocationAuditRepository
func NewGormAllocationAuditRepository(db *gorm.DB) *GormAllocationAuditRepository {
	return &GormAllocationAuditRepository{db: db}
}

func (r *GormAllocationAuditRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// Save appends an audit record
func (r *GormAllocationAuditRepository) Save(ctx context.Context, audit *revenue.AllocationAudit) error {
	return r.session(ctx).Create(audit).Error
}

// FindByRunID finds the audit record for a run
func (r *GormAllocationAuditRepository) FindByRunID(ctx context.Context, tenantID, runID uuid.UUID) (*revenue.AllocationAudit, error) {
	var audit revenue.AllocationAudit
	if err := r.session(ctx).
		Where("tenant_id = ? AND run_id = ?", tenantID, runID).
		First(&audit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &audit, nil
}

// FindByInvoice finds all audit records for an invoice
func (r *GormAllocationAuditRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]revenue.AllocationAudit, error) {
	var audits []revenue.AllocationAudit
	if err := r.session(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at ASC").
		Find(&audits).Error; err != nil {
		return nil, err
	}
	return audits, nil
}

// Ensure GormAllocationAuditRepository implements AllocationAuditRepository
var _ revenue.AllocationAuditRepository = (*GormAllocationAuditRepository)(nil)
