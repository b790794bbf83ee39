package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"gorm.io/gorm"
)

// GormCatalogEntryRepository implements CatalogEntryRepository using GORM.
// Lookups return (nil, nil) when no row matches, per the interface contract.
type GormCatalogEntryRepository struct {
	db *gorm.DB
}

// NewGormCatalogEntryRepository creates a new GormCatalogEntryRepository
func NewGormCatalogEntryRepository(db *gorm.DB) *GormCatalogEntryRepository {
	return &GormCatalogEntryRepository{db: db}
}

func (r *GormCatalogEntryRepository) session(ctx context.Context) *gorm.DB {
	return dbFrom(ctx, r.db).WithContext(ctx)
}

// FindByIDForTenant finds a catalog entry by ID within a tenant
func (r *GormCatalogEntryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*revenue.CatalogEntry, error) {
	var entry revenue.CatalogEntry
	if err := r.session(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindOpenApproved finds the APPROVED entry with an open effective interval
// for (tenant, product, currency)
func (r *GormCatalogEntryRepository) FindOpenApproved(ctx context.Context, tenantID, productID uuid.UUID, currency valueobject.Currency) (*revenue.CatalogEntry, error) {
	var entry revenue.CatalogEntry
	if err := r.session(ctx).
		Where("tenant_id = ? AND product_id = ? AND currency = ? AND status = ? AND effective_to IS NULL",
			tenantID, productID, currency, revenue.CatalogStatusApproved).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindEffective finds the APPROVED entry whose effective interval contains
// asOf, preferring the most recent effective-from
func (r *GormCatalogEntryRepository) FindEffective(ctx context.Context, tenantID, productID uuid.UUID, currency valueobject.Currency, asOf time.Time) (*revenue.CatalogEntry, error) {
	var entry revenue.CatalogEntry
	if err := r.session(ctx).
		Where("tenant_id = ? AND product_id = ? AND currency = ? AND status = ?",
			tenantID, productID, currency, revenue.CatalogStatusApproved).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", asOf, asOf).
		Order("effective_from DESC").
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// FindApprovedByCurrency finds all APPROVED entries for a currency across
// products
func (r *GormCatalogEntryRepository) FindApprovedByCurrency(ctx context.Context, tenantID uuid.UUID, currency valueobject.Currency) ([]revenue.CatalogEntry, error) {
	var entries []revenue.CatalogEntry
	if err := r.session(ctx).
		Where("tenant_id = ? AND currency = ? AND status = ?", tenantID, currency, revenue.CatalogStatusApproved).
		Order("effective_from ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Save creates or updates a catalog entry
func (r *GormCatalogEntryRepository) Save(ctx context.Context, entry *revenue.CatalogEntry) error {
	return r.session(ctx).Save(entry).Error
}

// Ensure GormCatalogEntryRepository implements CatalogEntryRepository
var _ revenue.CatalogEntryRepository = (*GormCatalogEntryRepository)(nil)
