package mapper

import (
	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/model"

	"gorm.io/datatypes"
)

type CheckpointMapper struct{}

func NewCheckpointMapper() *CheckpointMapper {
	return &CheckpointMapper{}
}

func (m *CheckpointMapper) ToSummary(c *model.Checkpoint) *entity.CheckpointSummary {
	if c == nil {
		return nil
	}
	return &entity.CheckpointSummary{
		Id:                 c.Id,
		SessionId:          c.SessionId,
		Name:               c.CheckpointName,
		Type:               entity.CheckpointType(c.CheckpointType),
		Description:        c.Description,
		GameDay:            c.GameDay,
		GameTime:           c.GameTime,
		LocationName:       c.LocationName,
		LocationDescriptor: c.LocationDescriptor,
		ProtagonistHp:      c.ProtagonistHp,
		ProtagonistSanity:  c.ProtagonistSanity,
		CreatedAt:          c.CreatedAt,
	}
}

func (m *CheckpointMapper) ToEntity(c *model.Checkpoint) *entity.Checkpoint {
	if c == nil {
		return nil
	}
	return &entity.Checkpoint{
		CheckpointSummary: *m.ToSummary(c),
		SerializedState:   []byte(c.SerializedState),
	}
}

func (m *CheckpointMapper) ToModel(c *entity.Checkpoint) *model.Checkpoint {
	if c == nil {
		return nil
	}
	return &model.Checkpoint{
		Id:                 c.Id,
		SessionId:          c.SessionId,
		CheckpointName:     c.Name,
		CheckpointType:     string(c.Type),
		Description:        c.Description,
		SerializedState:    datatypes.JSON(c.SerializedState),
		GameDay:            c.GameDay,
		GameTime:           c.GameTime,
		LocationName:       c.LocationName,
		LocationDescriptor: c.LocationDescriptor,
		ProtagonistHp:      c.ProtagonistHp,
		ProtagonistSanity:  c.ProtagonistSanity,
		CreatedAt:          c.CreatedAt,
	}
}
