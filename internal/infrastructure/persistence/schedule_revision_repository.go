package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormScheduleRevisionRepository implements ScheduleRevisionRepository using
// GORM. Revisions are append-only.
type GormScheduleRevisionRepository struct {
	db *gorm.DB
}

// NewGormScheduleRevisionRepository creates a new GormScheduleRevisionRepository
func NewGormScheduleRevisionRepository(db *gorm.DB) *GormScheduleRevisionRepository {
	return &GormScheduleRevisionRepository{db: db}
}

func (r *GormScheduleRevisionRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// Save appends a revision record
func (r *GormScheduleRevisionRepository) Save(ctx context.Context, revision *revenue.ScheduleRevision) error {
	return r.session(ctx).Create(revision).Error
}

// FindAllForTenant finds revisions with filtering
func (r *GormScheduleRevisionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter revenue.RevisionFilter) ([]revenue.ScheduleRevision, error) {
	var revisions []revenue.ScheduleRevision
	query := r.session(ctx).Model(&revenue.ScheduleRevision{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyConditions(query, filter)
	query = r.applyPagination(query, filter)

	if err := query.Find(&revisions).Error; err != nil {
		return nil, err
	}
	return revisions, nil
}

// CountForTenant counts revisions matching the filter
func (r *GormScheduleRevisionRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter revenue.RevisionFilter) (int64, error) {
	var count int64
	query := r.session(ctx).Model(&revenue.ScheduleRevision{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyConditions(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindByPOB finds all revisions for a POB
func (r *GormScheduleRevisionRepository) FindByPOB(ctx context.Context, tenantID, pobID uuid.UUID) ([]revenue.ScheduleRevision, error) {
	var revisions []revenue.ScheduleRevision
	if err := r.session(ctx).
		Where("tenant_id = ? AND pob_id = ?", tenantID, pobID).
		Order("from_year ASC, from_month ASC, created_at ASC").
		Find(&revisions).Error; err != nil {
		return nil, err
	}
	return revisions, nil
}

// applyConditions applies the filter's where clauses without pagination
func (r *GormScheduleRevisionRepository) applyConditions(query *gorm.DB, filter revenue.RevisionFilter) *gorm.DB {
	if filter.POBID != nil {
		query = query.Where("pob_id = ?", *filter.POBID)
	}
	if filter.Cause != nil {
		query = query.Where("cause = ?", *filter.Cause)
	}
	if filter.FromYear != nil {
		query = query.Where("from_year >= ?", *filter.FromYear)
	}
	return query
}

// applyPagination applies pagination and ordering
func (r *GormScheduleRevisionRepository) applyPagination(query *gorm.DB, filter revenue.RevisionFilter) *gorm.DB {
	if limit := filter.Limit(); limit > 0 {
		query = query.Offset(filter.Offset()).Limit(limit)
	}
	if filter.OrderBy != "" {
		sortField := ValidateSortField(filter.OrderBy, ScheduleRevisionSortFields, "created_at")
		query = query.Order(sortField + " " + ValidateSortOrder(filter.OrderDir))
	} else {
		query = query.Order("created_at ASC")
	}
	return query
}

// Ensure GormScheduleRevisionRepository implements ScheduleRevisionRepository
var _ revenue.ScheduleRevisionRepository = (*GormScheduleRevisionRepository)(nil)
