package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormSSPPolicyRepository implements SSPPolicyRepository using GORM
type GormSSPPolicyRepository struct {
	db *gorm.DB
}

// NewGormSSPPolicyRepository creates a new GormSSPPolicyRepository
func NewGormSSPPolicyRepository(db *gorm.DB) *GormSSPPolicyRepository {
	return &GormSSPPolicyRepository{db: db}
}

func (r *GormSSPPolicyRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// FindByTenant finds the tenant's policy, (nil, nil) when unconfigured
func (r *GormSSPPolicyRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*revenue.SSPPolicy, error) {
	var policy revenue.SSPPolicy
	if err := r.session(ctx).
		Where("tenant_id = ?", tenantID).
		First(&policy).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &policy, nil
}

// Save replaces the tenant's policy wholesale
func (r *GormSSPPolicyRepository) Save(ctx context.Context, policy *revenue.SSPPolicy) error {
	return r.session(ctx).Save(policy).Error
}

// Ensure GormSSPPolicyRepository implements SSPPolicyRepository
var _ revenue.SSPPolicyRepository = (*GormSSPPolicyRepository)(nil)
