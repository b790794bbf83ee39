package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormPerformanceObligationRepository implements PerformanceObligationRepository using GORM
type GormPerformanceObligationRepository struct {
	db *gorm.DB
}

// NewGormPerformanceObligationRepository creates a new GormPerformanceObligationRepository
func NewGormPerformanceObligationRepository(db *gorm.DB) *GormPerformanceObligationRepository {
	return &GormPerformanceObligationRepository{db: db}
}

func (r *GormPerformanceObligationRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// FindByIDForTenant finds a POB by ID within a tenant
func (r *GormPerformanceObligationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*revenue.PerformanceObligation, error) {
	var pob revenue.PerformanceObligation
	if err := r.session(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&pob).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pob, nil
}

// FindByContract finds POBs for a contract
func (r *GormPerformanceObligationRepository) FindByContract(ctx context.Context, tenantID, contractID uuid.UUID, filter shared.Filter) ([]revenue.PerformanceObligation, error) {
	var pobs []revenue.PerformanceObligation
	query := r.applyFilter(
		r.session(ctx).Model(&revenue.PerformanceObligation{}).
			Where("tenant_id = ? AND contract_id = ?", tenantID, contractID),
		filter,
	)
	if err := query.Find(&pobs).Error; err != nil {
		return nil, err
	}
	return pobs, nil
}

// FindOpenByProducts finds all OPEN POBs referencing any of the products
func (r *GormPerformanceObligationRepository) FindOpenByProducts(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) ([]revenue.PerformanceObligation, error) {
	if len(productIDs) == 0 {
		return []revenue.PerformanceObligation{}, nil
	}
	var pobs []revenue.PerformanceObligation
	if err := r.session(ctx).
		Where("tenant_id = ? AND product_id IN ? AND status = ?", tenantID, productIDs, revenue.POBStatusOpen).
		Order("contract_id ASC, created_at ASC").
		Find(&pobs).Error; err != nil {
		return nil, err
	}
	return pobs, nil
}

// Save creates or updates a POB
func (r *GormPerformanceObligationRepository) Save(ctx context.Context, pob *revenue.PerformanceObligation) error {
	return r.session(ctx).Save(pob).Error
}

// SaveAll creates or updates a batch of POBs
func (r *GormPerformanceObligationRepository) SaveAll(ctx context.Context, pobs []*revenue.PerformanceObligation) error {
	if len(pobs) == 0 {
		return nil
	}
	return r.session(ctx).Save(pobs).Error
}

// applyFilter applies pagination and ordering to the query
func (r *GormPerformanceObligationRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if limit := filter.Limit(); limit > 0 {
		query = query.Offset(filter.Offset()).Limit(limit)
	}
	if filter.OrderBy != "" {
		sortField := ValidateSortField(filter.OrderBy, ObligationSortFields, "start_date")
		query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	} else {
		query = query.Order("start_date ASC, created_at ASC")
	}
	return query
}

// Ensure GormPerformanceObligationRepository implements PerformanceObligationRepository
var _ revenue.PerformanceObligationRepository = (*GormPerformanceObligationRepository)(nil)
