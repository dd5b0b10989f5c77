package persistence

import (
	"context"

	"github.com/procurement/backend/internal/application/uow"
	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/domain/trade"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. Failures to begin or commit
// surface as storage errors; errors returned by fn are passed through.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos uow.Repositories) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&gormTransactionalRepositories{tx: tx})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return shared.NewStorageError("transaction", err)
	}
	return err
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Catalog() catalog.Repository {
	return NewGormCatalogRepository(r.tx)
}

func (r *gormTransactionalRepositories) Orders() trade.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) Users() identity.UserRepository {
	return NewGormUserRepository(r.tx)
}

func (r *gormTransactionalRepositories) Contacts() identity.ContactRepository {
	return NewGormContactRepository(r.tx)
}

func (r *gormTransactionalRepositories) Tasks() task.Repository {
	return NewGormTaskRepository(r.tx)
}

var (
	_ uow.TransactionScope = (*GormTransactionScope)(nil)
	_ uow.Repositories     = (*gormTransactionalRepositories)(nil)
)
