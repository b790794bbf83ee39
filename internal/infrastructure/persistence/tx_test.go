package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/openrev/backend/internal/domain/revenue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxManager_Execute(t *testing.T) {
	t.Run("commits when fn succeeds and repositories join the transaction", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		manager := NewTxManager(gormDB)
		repo := NewGormDiscountAppliedRepository(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "discounts_applied"`).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		applied := revenue.NewDiscountApplied(uuid.New(), uuid.New(), uuid.New(), uuid.New(),
			decimal.NewFromInt(50), revenue.DiscountDetail{RuleCode: "VOL10"})

		err := manager.Execute(context.Background(), func(ctx context.Context) error {
			return repo.Save(ctx, applied)
		})

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		manager := NewTxManager(gormDB)

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := manager.Execute(context.Background(), func(ctx context.Context) error {
			return errors.New("write failed")
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "write failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("writes outside Execute run on the base connection", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()

		repo := NewGormDiscountAppliedRepository(gormDB)

		// No transaction expectations: the statement runs directly
		mock.ExpectExec(`INSERT INTO "discounts_applied"`).
			WillReturnResult(sqlmock.NewResult(1, 1))

		applied := revenue.NewDiscountApplied(uuid.New(), uuid.New(), uuid.New(), uuid.New(),
			decimal.NewFromInt(25), revenue.DiscountDetail{RuleCode: "PROMO5"})

		err := repo.Save(context.Background(), applied)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
