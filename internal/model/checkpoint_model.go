package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Checkpoint struct {
	Id                 uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SessionId          uuid.UUID      `gorm:"type:uuid;not null;index:idx_checkpoints_session_created,priority:1"`
	CheckpointName     string         `gorm:"type:text;not null"`
	CheckpointType     string         `gorm:"type:varchar(16);not null;index"`
	Description        *string        `gorm:"type:text"`
	SerializedState    datatypes.JSON `gorm:"not null"`
	GameDay            int            `gorm:"not null;default:1"`
	GameTime           string         `gorm:"type:varchar(32)"`
	LocationName       string         `gorm:"type:text;index"`
	LocationDescriptor string         `gorm:"type:text"`
	ProtagonistHp      int
	ProtagonistSanity  int
	CreatedAt          time.Time `gorm:"not null;index:idx_checkpoints_session_created,priority:2"`
}

func (Checkpoint) TableName() string {
	return "checkpoints"
}
