package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormSSPChangeRequestRepository implements SSPChangeRequestRepository using GORM
type GormSSPChangeRequestRepository struct {
	db *gorm.DB
}

// NewGormSSPChangeRequestRepository creates a new GormSSPChangeRequestRepository
func NewGormSSPChangeRequestRepository(db *gorm.DB) *GormSSPChangeRequestRepository {
	return &GormSSPChangeRequestRepository{db: db}
}

func (r *GormSSPChangeRequestRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// FindByIDForTenant finds a change request by ID within a tenant
func (r *GormSSPChangeRequestRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*revenue.SSPChangeRequest, error) {
	var request revenue.SSPChangeRequest
	if err := r.session(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&request).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &request, nil
}

// Save creates or updates a change request
func (r *GormSSPChangeRequestRepository) Save(ctx context.Context, request *revenue.SSPChangeRequest) error {
	return r.session(ctx).Save(request).Error
}

// Ensure GormSSPChangeRequestRepository implements SSPChangeRequestRepository
var _ revenue.SSPChangeRequestRepository = (*GormSSPChangeRequestRepository)(nil)
