package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"gorm.io/gorm"
)

// GormBundleRepository implements BundleRepository using GORM. Bundles are
// loaded and saved together with their components.
type GormBundleRepository struct {
	db *gorm.DB
}

// NewGormBundleRepository creates a new GormBundleRepository
func NewGormBundleRepository(db *gorm.DB) *GormBundleRepository {
	return &GormBundleRepository{db: db}
}

func (r *GormBundleRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// FindActiveBySKU finds the active bundle with the given SKU
func (r *GormBundleRepository) FindActiveBySKU(ctx context.Context, tenantID uuid.UUID, bundleSKU string) (*revenue.Bundle, error) {
	var bundle revenue.Bundle
	if err := r.session(ctx).
		Preload("Components").
		Where("tenant_id = ? AND bundle_sku = ? AND active = ?", tenantID, bundleSKU, true).
		First(&bundle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bundle, nil
}

// FindEffectiveBySKU finds the bundle whose effective window contains asOf
func (r *GormBundleRepository) FindEffectiveBySKU(ctx context.Context, tenantID uuid.UUID, bundleSKU string, asOf time.Time) (*revenue.Bundle, error) {
	var bundle revenue.Bundle
	if err := r.session(ctx).
		Preload("Components").
		Where("tenant_id = ? AND bundle_sku = ?", tenantID, bundleSKU).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", asOf, asOf).
		Order("effective_from DESC").
		First(&bundle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &bundle, nil
}

// Save creates or updates a bundle together with its components
func (r *GormBundleRepository) Save(ctx context.Context, bundle *revenue.Bundle) error {
	return r.session(ctx).Save(bundle).Error
}

// Ensure GormBundleRepository implements BundleRepository
var _ revenue.BundleRepository = (*GormBundleRepository)(nil)
