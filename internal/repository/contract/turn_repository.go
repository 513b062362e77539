package contract

import (
	"context"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/repository/specification"

	"github.com/google/uuid"
)

type TurnRepository interface {
	Create(ctx context.Context, turn *entity.Turn) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Turn, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Turn, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	MaxTurnNumber(ctx context.Context, sessionId uuid.UUID) (int, error)

	// UpdateProgress and Finalize only touch rows still in processing.
	// The bool reports whether a row was changed.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress entity.TurnProgress) (bool, error)
	Finalize(ctx context.Context, turn *entity.Turn) (bool, error)
}
