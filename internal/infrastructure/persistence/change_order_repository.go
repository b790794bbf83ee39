package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormChangeOrderRepository implements ChangeOrderRepository using GORM.
// Change orders are loaded and saved together with their lines.
type GormChangeOrderRepository struct {
	db *gorm.DB
}

// NewGormChangeOrderRepository creates a new GormChangeOrderRepository
func NewGormChangeOrderRepository(db *gorm.DB) *GormChangeOrderRepository {
	return &GormChangeOrderRepository{db: db}
}

func (r *GormChangeOrderRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// FindByIDForTenant finds a change order with its lines
func (r *GormChangeOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*revenue.ChangeOrder, error) {
	var changeOrder revenue.ChangeOrder
	if err := r.session(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&changeOrder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &changeOrder, nil
}

// FindAllForTenant finds change orders with filtering
func (r *GormChangeOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter revenue.ChangeOrderFilter) ([]revenue.ChangeOrder, error) {
	var changeOrders []revenue.ChangeOrder
	query := r.session(ctx).Model(&revenue.ChangeOrder{}).
		Preload("Lines").
		Where("tenant_id = ?", tenantID)
	query = r.applyConditions(query, filter)
	query = r.applyPagination(query, filter)

	if err := query.Find(&changeOrders).Error; err != nil {
		return nil, err
	}
	return changeOrders, nil
}

// CountForTenant counts change orders matching the filter
func (r *GormChangeOrderRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter revenue.ChangeOrderFilter) (int64, error) {
	var count int64
	query := r.session(ctx).Model(&revenue.ChangeOrder{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyConditions(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a change order together with its lines
func (r *GormChangeOrderRepository) Save(ctx context.Context, changeOrder *revenue.ChangeOrder) error {
	return r.session(ctx).Save(changeOrder).Error
}

// applyConditions applies the filter's where clauses without pagination
func (r *GormChangeOrderRepository) applyConditions(query *gorm.DB, filter revenue.ChangeOrderFilter) *gorm.DB {
	if filter.ContractID != nil {
		query = query.Where("contract_id = ?", *filter.ContractID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.FromDate != nil {
		query = query.Where("effective_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("effective_date < ?", *filter.ToDate)
	}
	return query
}

// applyPagination applies pagination and ordering
func (r *GormChangeOrderRepository) applyPagination(query *gorm.DB, filter revenue.ChangeOrderFilter) *gorm.DB {
	if limit := filter.Limit(); limit > 0 {
		query = query.Offset(filter.Offset()).Limit(limit)
	}
	if filter.OrderBy != "" {
		sortField := ValidateSortField(filter.OrderBy, ChangeOrderSortFields, "effective_date")
		query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	} else {
		query = query.Order("effective_date ASC, created_at ASC")
	}
	return query
}

// Ensure GormChangeOrderRepository implements ChangeOrderRepository
var _ revenue.ChangeOrderRepository = (*GormChangeOrderRepository)(nil)
