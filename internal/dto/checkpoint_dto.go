package dto

import (
	"time"

	"github.com/google/uuid"
)

type SaveCheckpointRequest struct {
	SessionId   uuid.UUID `json:"sessionId" validate:"required"`
	Name        string    `json:"name" validate:"max=120"`
	Description string    `json:"description" validate:"max=500"`
}

type SaveCheckpointResponse struct {
	CheckpointId uuid.UUID `json:"checkpointId"`
}

type CheckpointSummaryResponse struct {
	CheckpointId       uuid.UUID `json:"checkpointId"`
	SessionId          uuid.UUID `json:"sessionId"`
	CheckpointName     string    `json:"checkpointName"`
	CheckpointType     string    `json:"checkpointType"`
	Description        *string   `json:"description,omitempty"`
	GameDay            int       `json:"gameDay"`
	GameTime           string    `json:"gameTime"`
	LocationName       string    `json:"locationName"`
	LocationDescriptor string    `json:"locationDescriptor"`
	ProtagonistHp      int       `json:"protagonistHp"`
	ProtagonistSanity  int       `json:"protagonistSanity"`
	CreatedAt          time.Time `json:"createdAt"`
}

type RestoreCheckpointResponse struct {
	SessionId    uuid.UUID `json:"sessionId"`
	CheckpointId uuid.UUID `json:"checkpointId"`
	LocationName string    `json:"locationName"`
	GameDay      int       `json:"gameDay"`
	GameTime     string    `json:"gameTime"`
}
