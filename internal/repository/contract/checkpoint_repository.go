package contract

import (
	"context"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/repository/specification"

	"github.com/google/uuid"
)

type CheckpointRepository interface {
	Create(ctx context.Context, checkpoint *entity.Checkpoint) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Checkpoint, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Checkpoint, error)
	FindSummaries(ctx context.Context, specs ...specification.Specification) ([]*entity.CheckpointSummary, error)
	FindIDs(ctx context.Context, specs ...specification.Specification) ([]uuid.UUID, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
