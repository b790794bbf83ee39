package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormDiscountAppliedRepository implements DiscountAppliedRepository using GORM
type GormDiscountAppliedRepository struct {
	db *gorm.DB
}

// NewGormDiscountAppliedRepository creates a new GormDiscountAppliedRepository
func NewGormDiscountAppliedRepository(db *gorm.DB) *GormDiscountAppliedRepository {
	return &GormDiscountAppliedRepository{db: db}
}

func (r *GormDiscountAppliedRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// Save appends a discount application record
func (r *GormDiscountAppliedRepository) Save(ctx context.Context, applied *revenue.DiscountApplied) error {
	return r.session(ctx).Create(applied).Error
}

// FindByRunID finds all applications recorded for an allocation run
func (r *GormDiscountAppliedRepository) FindByRunID(ctx context.Context, tenantID, runID uuid.UUID) ([]revenue.DiscountApplied, error) {
	var applications []revenue.DiscountApplied
	if err := r.session(ctx).
		Where("tenant_id = ? AND run_id = ?", tenantID, runID).
		Order("created_at ASC").
		Find(&applications).Error; err != nil {
		return nil, err
	}
	return applications, nil
}

// Ensure GormDiscountAppliedRepository implements DiscountAppliedRepository
var _ revenue.DiscountAppliedRepository = (*GormDiscountAppliedRepository)(nil)
