package unitofwork

import "context"

// RepositoryFactory hands out units of work bound to a request context
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
	// Transaction runs fn inside one database transaction, committing when
	// fn returns nil and rolling back otherwise.
	Transaction(ctx context.Context, fn func(uow UnitOfWork) error) error
}
