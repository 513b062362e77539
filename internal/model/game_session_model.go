package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GameSession struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey"`
	PlayerId     string         `gorm:"type:text;not null;index"`
	Title        string         `gorm:"type:text;not null"`
	Status       string         `gorm:"type:varchar(16);not null;index"`
	CurrentState datatypes.JSON // latest committed SessionState
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
	EndedAt      *time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (GameSession) TableName() string {
	return "game_sessions"
}
