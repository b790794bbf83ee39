package persistence

import (
	"context"

	"github.com/openrev/backend/internal/domain/shared"
	applog "github.com/openrev/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type txContextKey struct{}

// TxManager implements shared.UnitOfWork on a GORM connection. Execute runs
// fn inside a database transaction and stores the transaction handle in the
// context; repositories built on the same connection pick it up via dbFrom,
// so every repository write inside fn joins the same transaction.
type TxManager struct {
	db *gorm.DB
}

// NewTxManager creates a new TxManager
func NewTxManager(db *gorm.DB) *TxManager {
	return &TxManager{db: db}
}

// Execute runs fn atomically. The transaction commits when fn returns nil
// and rolls back otherwise.
func (m *TxManager) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
	if err != nil {
		applog.L(ctx).Debug("transaction rolled back", zap.Error(err))
	}
	return err
}

// dbFrom returns the transaction handle stored by Execute, or fallback when
// the context carries none.
func dbFrom(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback
}

// Ensure TxManager implements UnitOfWork
var _ shared.UnitOfWork = (*TxManager)(nil)
