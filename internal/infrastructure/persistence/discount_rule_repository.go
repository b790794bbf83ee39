package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormDiscountRuleRepository implements DiscountRuleRepository using GORM
type GormDiscountRuleRepository struct {
	db *gorm.DB
}

// NewGormDiscountRuleRepository creates a new GormDiscountRuleRepository
func NewGormDiscountRuleRepository(db *gorm.DB) *GormDiscountRuleRepository {
	return &GormDiscountRuleRepository{db: db}
}

func (r *GormDiscountRuleRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// FindByIDForTenant finds a rule by ID within a tenant
func (r *GormDiscountRuleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*revenue.DiscountRule, error) {
	var rule revenue.DiscountRule
	if err := r.session(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// FindActiveByCode finds the active rule with the given code
func (r *GormDiscountRuleRepository) FindActiveByCode(ctx context.Context, tenantID uuid.UUID, code string) (*revenue.DiscountRule, error) {
	var rule revenue.DiscountRule
	if err := r.session(ctx).
		Where("tenant_id = ? AND code = ? AND active = ?", tenantID, code, true).
		First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

// FindActiveAsOf finds active rules whose effective window contains asOf,
// highest priority first, ties broken by creation time
func (r *GormDiscountRuleRepository) FindActiveAsOf(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]revenue.DiscountRule, error) {
	var rules []revenue.DiscountRule
	if err := r.session(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", asOf, asOf).
		Order("priority DESC, created_at ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// Save creates or updates a rule
func (r *GormDiscountRuleRepository) Save(ctx context.Context, rule *revenue.DiscountRule) error {
	return r.session(ctx).Save(rule).Error
}

// Ensure GormDiscountRuleRepository implements DiscountRuleRepository
var _ revenue.DiscountRuleRepository = (*GormDiscountRuleRepository)(nil)
