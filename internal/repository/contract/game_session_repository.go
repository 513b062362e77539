package contract

import (
	"context"
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/repository/specification"

	"github.com/google/uuid"
)

type GameSessionRepository interface {
	Create(ctx context.Context, session *entity.GameSession) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.GameSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.GameSession, error)
	UpdateState(ctx context.Context, id uuid.UUID, state []byte) error
	MarkEnded(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}
