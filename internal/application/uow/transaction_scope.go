// Package uow defines the unit of work shared by application services that
// must change several aggregates atomically.
package uow

import (
	"context"

	"github.com/procurement/backend/internal/domain/catalog"
	"github.com/procurement/backend/internal/domain/identity"
	"github.com/procurement/backend/internal/domain/task"
	"github.com/procurement/backend/internal/domain/trade"
)

// TransactionScope provides transactional access to repositories.
// All repository operations inside Execute commit or roll back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction. A returned error rolls back.
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories provides access to repositories sharing one transaction.
// Row locks taken through them are held until Execute returns.
type Repositories interface {
	Catalog() catalog.Repository
	Orders() trade.OrderRepository
	Users() identity.UserRepository
	Contacts() identity.ContactRepository
	Tasks() task.Repository
}

// NoOpTransactionScope runs functions against plain repositories without a
// transaction. Used by unit tests with mocked repositories.
type NoOpTransactionScope struct {
	catalogRepo catalog.Repository
	orderRepo   trade.OrderRepository
	userRepo    identity.UserRepository
	contactRepo identity.ContactRepository
	taskRepo    task.Repository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
// Any of them may be nil when the code under test does not touch it.
func NewNoOpTransactionScope(
	catalogRepo catalog.Repository,
	orderRepo trade.OrderRepository,
	userRepo identity.UserRepository,
	contactRepo identity.ContactRepository,
	taskRepo task.Repository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		catalogRepo: catalogRepo,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		contactRepo: contactRepo,
		taskRepo:    taskRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos Repositories) error) error {
	return fn(s)
}

// Catalog returns the catalog repository
func (s *NoOpTransactionScope) Catalog() catalog.Repository { return s.catalogRepo }

// Orders returns the order repository
func (s *NoOpTransactionScope) Orders() trade.OrderRepository { return s.orderRepo }

// Users returns the user repository
func (s *NoOpTransactionScope) Users() identity.UserRepository { return s.userRepo }

// Contacts returns the contact repository
func (s *NoOpTransactionScope) Contacts() identity.ContactRepository { return s.contactRepo }

// Tasks returns the task repository
func (s *NoOpTransactionScope) Tasks() task.Repository { return s.taskRepo }

var (
	_ TransactionScope = (*NoOpTransactionScope)(nil)
	_ Repositories     = (*NoOpTransactionScope)(nil)
)
