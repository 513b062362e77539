package implementation

import (
	"context"
	"errors"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/mapper"
	"narrative-engine-be/internal/model"
	"narrative-engine-be/internal/repository/contract"
	"narrative-engine-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TurnRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TurnMapper
}

func NewTurnRepository(db *gorm.DB) contract.TurnRepository {
	return &TurnRepositoryImpl{
		db:     db,
		mapper: mapper.NewTurnMapper(),
	}
}

func (r *TurnRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *TurnRepositoryImpl) Create(ctx context.Context, turn *entity.Turn) error {
	m := r.mapper.ToModel(turn)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*turn = *r.mapper.ToEntity(m)
	return nil
}

func (r *TurnRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Turn, error) {
	var m model.Turn
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *TurnRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Turn, error) {
	var models []*model.Turn
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	turns := make([]*entity.Turn, 0, len(models))
	for _, m := range models {
		turns = append(turns, r.mapper.ToEntity(m))
	}
	return turns, nil
}

func (r *TurnRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Turn{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TurnRepositoryImpl) MaxTurnNumber(ctx context.Context, sessionId uuid.UUID) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&model.Turn{}).
		Where("session_id = ?", sessionId).
		Select("COALESCE(MAX(turn_number), 0)").
		Scan(&max).Error
	return max, err
}

func (r *TurnRepositoryImpl) UpdateProgress(ctx context.Context, id uuid.UUID, progress entity.TurnProgress) (bool, error) {
	cols := r.mapper.ProgressColumns(progress)
	if len(cols) == 0 {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.Turn{}).
		Where("id = ? AND status = ?", id, string(entity.TurnStatusProcessing)).
		Updates(cols)
	return res.RowsAffected > 0, res.Error
}

func (r *TurnRepositoryImpl) Finalize(ctx context.Context, turn *entity.Turn) (bool, error) {
	m := r.mapper.ToModel(turn)
	cols := map[string]interface{}{
		"status":           m.Status,
		"narrative_output": m.NarrativeOutput,
		"revealed_facts":   m.RevealedFacts,
		"error_message":    m.ErrorMessage,
		"completed_at":     m.CompletedAt,
	}
	res := r.db.WithContext(ctx).
		Model(&model.Turn{}).
		Where("id = ? AND status = ?", turn.Id, string(entity.TurnStatusProcessing)).
		Updates(cols)
	return res.RowsAffected > 0, res.Error
}
