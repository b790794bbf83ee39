package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockGormDB creates a GORM connection backed by sqlmock
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func newMockCatalogEntryRepository(t *testing.T) (*GormCatalogEntryRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewGormCatalogEntryRepository(gormDB), mock, mockDB
}

func TestGormCatalogEntryRepository_FindByIDForTenant(t *testing.T) {
	t.Run("finds existing entry", func(t *testing.T) {
		repo, mock, mockDB := newMockCatalogEntryRepository(t)
		defer mockDB.Close()

		entryID := uuid.New()
		tenantID := uuid.New()
		productID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "product_id", "currency", "ssp", "method", "effective_from", "status"}).
			AddRow(entryID, tenantID, productID, "USD", decimal.NewFromInt(100), "LIST_PRICE", time.Now(), "APPROVED")

		mock.ExpectQuery(`SELECT \* FROM "ssp_catalog_entries" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, entryID, 1).
			WillReturnRows(rows)

		entry, err := repo.FindByIDForTenant(context.Background(), tenantID, entryID)

		assert.NoError(t, err)
		assert.NotNil(t, entry)
		assert.Equal(t, entryID, entry.ID)
		assert.Equal(t, revenue.CatalogStatusApproved, entry.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil without error when no row matches", func(t *testing.T) {
		repo, mock, mockDB := newMockCatalogEntryRepository(t)
		defer mockDB.Close()

		entryID := uuid.New()
		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "ssp_catalog_entries" WHERE tenant_id = \$1 AND id = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, entryID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		entry, err := repo.FindByIDForTenant(context.Background(), tenantID, entryID)

		assert.NoError(t, err)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormCatalogEntryRepository_FindOpenApproved(t *testing.T) {
	t.Run("filters on approved status and open interval", func(t *testing.T) {
		repo, mock, mockDB := newMockCatalogEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "product_id", "currency", "ssp", "method", "effective_from", "status"}).
			AddRow(uuid.New(), tenantID, productID, "USD", decimal.NewFromInt(150), "LIST_PRICE", time.Now(), "APPROVED")

		mock.ExpectQuery(`SELECT \* FROM "ssp_catalog_entries" WHERE tenant_id = \$1 AND product_id = \$2 AND currency = \$3 AND status = \$4 AND effective_to IS NULL ORDER BY .* LIMIT .*`).
			WithArgs(tenantID, productID, "USD", string(revenue.CatalogStatusApproved), 1).
			WillReturnRows(rows)

		entry, err := repo.FindOpenApproved(context.Background(), tenantID, productID, valueobject.Currency("USD"))

		assert.NoError(t, err)
		assert.NotNil(t, entry)
		assert.True(t, entry.SSP.Equal(decimal.NewFromInt(150)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil when no open entry exists", func(t *testing.T) {
		repo, mock, mockDB := newMockCatalogEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "ssp_catalog_entries"`).
			WillReturnError(gorm.ErrRecordNotFound)

		entry, err := repo.FindOpenApproved(context.Background(), tenantID, productID, valueobject.Currency("USD"))

		assert.NoError(t, err)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormCatalogEntryRepository_FindEffective(t *testing.T) {
	t.Run("applies the as-of interval condition", func(t *testing.T) {
		repo, mock, mockDB := newMockCatalogEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		productID := uuid.New()
		asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "product_id", "currency", "ssp", "method", "effective_from", "status"}).
			AddRow(uuid.New(), tenantID, productID, "USD", decimal.NewFromInt(120), "COST_PLUS", asOf.AddDate(0, -3, 0), "APPROVED")

		mock.ExpectQuery(`SELECT \* FROM "ssp_catalog_entries" WHERE .* effective_from <= \$5 AND \(effective_to IS NULL OR effective_to > \$6\) ORDER BY effective_from DESC.* LIMIT .*`).
			WithArgs(tenantID, productID, "USD", string(revenue.CatalogStatusApproved), asOf, asOf, 1).
			WillReturnRows(rows)

		entry, err := repo.FindEffective(context.Background(), tenantID, productID, valueobject.Currency("USD"), asOf)

		assert.NoError(t, err)
		assert.NotNil(t, entry)
		assert.Equal(t, revenue.PricingMethodCostPlus, entry.Method)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormCatalogEntryRepository_FindApprovedByCurrency(t *testing.T) {
	t.Run("returns all approved entries for the currency", func(t *testing.T) {
		repo, mock, mockDB := newMockCatalogEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		rows := sqlmock.NewRows([]string{"id", "tenant_id", "product_id", "currency", "ssp", "method", "effective_from", "status"}).
			AddRow(uuid.New(), tenantID, uuid.New(), "EUR", decimal.NewFromInt(90), "LIST_PRICE", time.Now(), "APPROVED").
			AddRow(uuid.New(), tenantID, uuid.New(), "EUR", decimal.NewFromInt(110), "LIST_PRICE", time.Now(), "APPROVED")

		mock.ExpectQuery(`SELECT \* FROM "ssp_catalog_entries" WHERE tenant_id = \$1 AND currency = \$2 AND status = \$3`).
			WithArgs(tenantID, "EUR", string(revenue.CatalogStatusApproved)).
			WillReturnRows(rows)

		entries, err := repo.FindApprovedByCurrency(context.Background(), tenantID, valueobject.Currency("EUR"))

		assert.NoError(t, err)
		assert.Len(t, entries, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty slice when no history exists", func(t *testing.T) {
		repo, mock, mockDB := newMockCatalogEntryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "ssp_catalog_entries"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		entries, err := repo.FindApprovedByCurrency(context.Background(), tenantID, valueobject.Currency("EUR"))

		assert.NoError(t, err)
		assert.Empty(t, entries)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
