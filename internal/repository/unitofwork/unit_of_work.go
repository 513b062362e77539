package unitofwork

import (
	"context"

	"narrative-engine-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	TurnRepository() contract.TurnRepository
	CheckpointRepository() contract.CheckpointRepository
	GameSessionRepository() contract.GameSessionRepository
}
