package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormVCPolicyRepository implements VCPolicyRepository using GORM
type GormVCPolicyRepository struct {
	db *gorm.DB
}

// NewGormVCPolicyRepository creates a new GormVCPolicyRepository
func NewGormVCPolicyRepository(db *gorm.DB) *GormVCPolicyRepository {
	return &GormVCPolicyRepository{db: db}
}

func (r *GormVCPolicyRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// FindByTenant finds the tenant's constraint policy, (nil, nil) when unconfigured
func (r *GormVCPolicyRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*revenue.VCPolicy, error) {
	var policy revenue.VCPolicy
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

// Save creates or replaces the tenant's policy
func (r *GormVCPolicyRepository) Save(ctx context.Context, policy *revenue.VCPolicy) error {
	return r.session(ctx).Save(policy).Error
}

// Ensure GormVCPolicyRepository implements VCPolicyRepository
var _ revenue.VCPolicyRepository = (*GormVCPolicyRepository)(nil)
