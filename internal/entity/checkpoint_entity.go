package entity

import (
	"time"

	"github.com/google/uuid"
)

type CheckpointType string

const (
	CheckpointTypeAuto       CheckpointType = "auto"
	CheckpointTypeManual     CheckpointType = "manual"
	CheckpointTypeTransition CheckpointType = "transition"
)

func (t CheckpointType) Valid() bool {
	switch t {
	case CheckpointTypeAuto, CheckpointTypeManual, CheckpointTypeTransition:
		return true
	}
	return false
}

// CheckpointSummary is the denormalized row used for listing
type CheckpointSummary struct {
	Id                 uuid.UUID
	SessionId          uuid.UUID
	Name               string
	Type               CheckpointType
	Description        *string
	GameDay            int
	GameTime           string
	LocationName       string
	LocationDescriptor string
	ProtagonistHp      int
	ProtagonistSanity  int
	CreatedAt          time.Time
}

type Checkpoint struct {
	CheckpointSummary
	SerializedState []byte
}
