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

type CheckpointRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CheckpointMapper
}

func NewCheckpointRepository(db *gorm.DB) contract.CheckpointRepository {
	return &CheckpointRepositoryImpl{
		db:     db,
		mapper: mapper.NewCheckpointMapper(),
	}
}

func (r *CheckpointRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CheckpointRepositoryImpl) Create(ctx context.Context, checkpoint *entity.Checkpoint) error {
	m := r.mapper.ToModel(checkpoint)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*checkpoint = *r.mapper.ToEntity(m)
	return nil
}

func (r *CheckpointRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Checkpoint, error) {
	var m model.Checkpoint
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CheckpointRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Checkpoint, error) {
	var models []*model.Checkpoint
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.Checkpoint, 0, len(models))
	for _, m := range models {
		out = append(out, r.mapper.ToEntity(m))
	}
	return out, nil
}

// FindSummaries never loads the serialized state column
func (r *CheckpointRepositoryImpl) FindSummaries(ctx context.Context, specs ...specification.Specification) ([]*entity.CheckpointSummary, error) {
	var models []*model.Checkpoint
	query := r.applySpecifications(r.db.WithContext(ctx).Omit("serialized_state"), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*entity.CheckpointSummary, 0, len(models))
	for _, m := range models {
		out = append(out, r.mapper.ToSummary(m))
	}
	return out, nil
}

func (r *CheckpointRepositoryImpl) FindIDs(ctx context.Context, specs ...specification.Specification) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Checkpoint{}), specs...)
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *CheckpointRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.Checkpoint{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CheckpointRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.Checkpoint{}, "id = ?", id)
	return res.RowsAffected > 0, res.Error
}

func (r *CheckpointRepositoryImpl) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.Checkpoint{})
	return res.RowsAffected, res.Error
}
