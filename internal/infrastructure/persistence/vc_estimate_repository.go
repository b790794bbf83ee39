package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormVCEstimateRepository implements VCEstimateRepository using GORM
type GormVCEstimateRepository struct {
	db *gorm.DB
}

// NewGormVCEstimateRepository creates a new GormVCEstimateRepository
func NewGormVCEstimateRepository(db *gorm.DB) *GormVCEstimateRepository {
	return &GormVCEstimateRepository{db: db}
}

func (r *GormVCEstimateRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// FindByPeriod finds the estimate for the upsert key (tenant, contract, pob, year, month)
func (r *GormVCEstimateRepository) FindByPeriod(ctx context.Context, tenantID, contractID, pobID uuid.UUID, year, month int) (*revenue.VCEstimate, error) {
	var estimate revenue.VCEstimate
	if err := r.session(ctx).
		Where("tenant_id = ? AND contract_id = ? AND pob_id = ? AND year = ? AND month = ?",
			tenantID, contractID, pobID, year, month).
		First(&estimate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &estimate, nil
}

// FindAllForTenant finds estimates with filtering
func (r *GormVCEstimateRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter revenue.VCEstimateFilter) ([]revenue.VCEstimate, error) {
	var estimates []revenue.VCEstimate
	query := r.session(ctx).Model(&revenue.VCEstimate{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyConditions(query, filter)
	query = r.applyPagination(query, filter)

	if err := query.Find(&estimates).Error; err != nil {
		return nil, err
	}
	return estimates, nil
}

// CountForTenant counts estimates matching the filter
func (r *GormVCEstimateRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter revenue.VCEstimateFilter) (int64, error) {
	var count int64
	query := r.session(ctx).Model(&revenue.VCEstimate{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyConditions(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an estimate
func (r *GormVCEstimateRepository) Save(ctx context.Context, estimate *revenue.VCEstimate) error {
	return r.session(ctx).Save(estimate).Error
}

// applyConditions applies the filter's where clauses without pagination
func (r *GormVCEstimateRepository) applyConditions(query *gorm.DB, filter revenue.VCEstimateFilter) *gorm.DB {
	if filter.ContractID != nil {
		query = query.Where("contract_id = ?", *filter.ContractID)
	}
	if filter.POBID != nil {
		query = query.Where("pob_id = ?", *filter.POBID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Year != nil {
		query = query.Where("year = ?", *filter.Year)
	}
	if filter.Month != nil {
		query = query.Where("month = ?", *filter.Month)
	}
	return query
}

// applyPagination applies pagination and ordering
func (r *GormVCEstimateRepository) applyPagination(query *gorm.DB, filter revenue.VCEstimateFilter) *gorm.DB {
	if limit := filter.Limit(); limit > 0 {
		query = query.Offset(filter.Offset()).Limit(limit)
	}
	if filter.OrderBy != "" {
		sortField := ValidateSortField(filter.OrderBy, VCEstimateSortFields, "year")
		query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	} else {
		query = query.Order("year ASC, month ASC, created_at ASC")
	}
	return query
}

// Ensure GormVCEstimateRepository implements VCEstimateRepository
var _ revenue.VCEstimateRepository = (*GormVCEstimateRepository)(nil)
