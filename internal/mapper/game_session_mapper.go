package mapper

import (
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/model"

	"gorm.io/datatypes"
)

type GameSessionMapper struct{}

func NewGameSessionMapper() *GameSessionMapper {
	return &GameSessionMapper{}
}

func (m *GameSessionMapper) ToEntity(s *model.GameSession) *entity.GameSession {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.GameSession{
		Id:           s.Id,
		PlayerId:     s.PlayerId,
		Title:        s.Title,
		Status:       entity.GameSessionStatus(s.Status),
		CurrentState: []byte(s.CurrentState),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    updatedAt,
		EndedAt:      s.EndedAt,
	}
}

func (m *GameSessionMapper) ToModel(s *entity.GameSession) *model.GameSession {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.GameSession{
		Id:           s.Id,
		PlayerId:     s.PlayerId,
		Title:        s.Title,
		Status:       string(s.Status),
		CurrentState: datatypes.JSON(s.CurrentState),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    updatedAt,
		EndedAt:      s.EndedAt,
	}
}
