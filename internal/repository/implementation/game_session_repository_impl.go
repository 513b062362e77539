package implementation

import (
	"context"
	"errors"
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/mapper"
	"narrative-engine-be/internal/model"
	"narrative-engine-be/internal/repository/contract"
	"narrative-engine-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GameSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.GameSessionMapper
}

func NewGameSessionRepository(db *gorm.DB) contract.GameSessionRepository {
	return &GameSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewGameSessionMapper(),
	}
}

func (r *GameSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *GameSessionRepositoryImpl) Create(ctx context.Context, session *entity.GameSession) error {
	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ToEntity(m)
	return nil
}

func (r *GameSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.GameSession, error) {
	var m model.GameSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *GameSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.GameSession, error) {
	var models []*model.GameSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	sessions := make([]*entity.GameSession, 0, len(models))
	for _, m := range models {
		sessions = append(sessions, r.mapper.ToEntity(m))
	}
	return sessions, nil
}

func (r *GameSessionRepositoryImpl) UpdateState(ctx context.Context, id uuid.UUID, state []byte) error {
	return r.db.WithContext(ctx).
		Model(&model.GameSession{}).
		Where("id = ?", id).
		Update("current_state", datatypes.JSON(state)).Error
}

func (r *GameSessionRepositoryImpl) MarkEnded(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.GameSession{}).
		Where("id = ? AND status = ?", id, string(entity.GameSessionActive)).
		Updates(map[string]interface{}{
			"status":   string(entity.GameSessionEnded),
			"ended_at": at,
		}).Error
}

func (r *GameSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.GameSession{}, "id = ?", id).Error
}
