package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"github.com/openrev/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newMockPOBRepository(t *testing.T) (*GormPerformanceObligationRepository, sqlmock.Sqlmock, *sql.DB) {
	gormDB, mock, mockDB := newMockGormDB(t)
	return NewGormPerformanceObligationRepository(gormDB), mock, mockDB
}

func pobRows(tenantID, contractID, productID uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "contract_id", "product_id", "name", "method", "start_date", "qty", "allocated_amount", "currency", "status"}).
		AddRow(uuid.New(), tenantID, contractID, productID, "Platform fee", "RATABLE_MONTHLY", time.Now(), decimal.NewFromInt(1), decimal.NewFromInt(1200), "USD", "OPEN")
}

func TestGormPerformanceObligationRepository_FindOpenByProducts(t *testing.T) {
	t.Run("filters on product set and OPEN status", func(t *testing.T) {
		repo, mock, mockDB := newMockPOBRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		contractID := uuid.New()
		productID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "performance_obligations" WHERE tenant_id = \$1 AND product_id IN \(\$2\) AND status = \$3`).
			WithArgs(tenantID, productID, string(revenue.POBStatusOpen)).
			WillReturnRows(pobRows(tenantID, contractID, productID))

		pobs, err := repo.FindOpenByProducts(context.Background(), tenantID, []uuid.UUID{productID})

		assert.NoError(t, err)
		assert.Len(t, pobs, 1)
		assert.Equal(t, contractID, pobs[0].ContractID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns empty slice without querying for an empty product set", func(t *testing.T) {
		repo, mock, mockDB := newMockPOBRepository(t)
		defer mockDB.Close()

		pobs, err := repo.FindOpenByProducts(context.Background(), uuid.New(), nil)

		assert.NoError(t, err)
		assert.Empty(t, pobs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPerformanceObligationRepository_FindByContract(t *testing.T) {
	t.Run("applies pagination from the filter", func(t *testing.T) {
		repo, mock, mockDB := newMockPOBRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		contractID := uuid.New()
		productID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "performance_obligations" WHERE tenant_id = \$1 AND contract_id = \$2 ORDER BY start_date ASC, created_at ASC LIMIT .*`).
			WithArgs(tenantID, contractID, 10).
			WillReturnRows(pobRows(tenantID, contractID, productID))

		filter := shared.Filter{Page: 1, PageSize: 10}
		pobs, err := repo.FindByContract(context.Background(), tenantID, contractID, filter)

		assert.NoError(t, err)
		assert.Len(t, pobs, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPerformanceObligationRepository_FindByIDForTenant(t *testing.T) {
	t.Run("returns nil without error when no row matches", func(t *testing.T) {
		repo, mock, mockDB := newMockPOBRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "performance_obligations"`).
			WillReturnError(gorm.ErrRecordNotFound)

		pob, err := repo.FindByIDForTenant(context.Background(), uuid.New(), uuid.New())

		assert.NoError(t, err)
		assert.Nil(t, pob)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormPerformanceObligationRepository_SaveAll(t *testing.T) {
	t.Run("no-op for an empty batch", func(t *testing.T) {
		repo, mock, mockDB := newMockPOBRepository(t)
		defer mockDB.Close()

		err := repo.SaveAll(context.Background(), nil)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
