package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Turn struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SessionId        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_turns_session_number,priority:1"`
	TurnNumber       int            `gorm:"not null;uniqueIndex:idx_turns_session_number,priority:2"`
	InputText        string         `gorm:"type:text;not null"`
	IsSimulated      bool           `gorm:"not null;default:false"`
	ParticipantId    *string        `gorm:"type:text"`
	ParticipantName  *string        `gorm:"type:text"`
	IntentAnalysis   datatypes.JSON // nullable until the intent stage writes it
	ActionOutcomes   datatypes.JSON
	LocationDecision datatypes.JSON
	NarrativeOutput  *string `gorm:"type:text"`
	RevealedFacts    datatypes.JSON
	LocationId       *string    `gorm:"type:text"`
	LocationName     *string    `gorm:"type:text"`
	Descriptor       *string    `gorm:"type:text"`
	Status           string     `gorm:"type:varchar(16);not null;index"`
	ErrorMessage     *string    `gorm:"type:text"`
	StartedAt        time.Time  `gorm:"not null;index"`
	CompletedAt      *time.Time
}

func (Turn) TableName() string {
	return "turns"
}
