package dto

import (
	"time"

	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
)

type LocationRequest struct {
	Id          string   `json:"id"`
	Name        string   `json:"name" validate:"required,max=120"`
	Description string   `json:"description"`
	Exits       []string `json:"exits"`
}

type ParticipantRequest struct {
	Id     string `json:"id" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,max=120"`
	Hp     int    `json:"hp" validate:"min=0"`
	Sanity int    `json:"sanity" validate:"min=0"`
	Status string `json:"status"`
}

type StartSessionRequest struct {
	Title             string               `json:"title" validate:"max=200"`
	ProtagonistName   string               `json:"protagonistName" validate:"required,max=120"`
	ProtagonistHp     int                  `json:"protagonistHp" validate:"min=0"`
	ProtagonistSanity int                  `json:"protagonistSanity" validate:"min=0"`
	ActionCap         int                  `json:"actionCap" validate:"min=0,max=20"`
	StartLocation     *LocationRequest     `json:"startLocation"`
	Participants      []ParticipantRequest `json:"participants" validate:"dive"`
}

type StartSessionResponse struct {
	SessionId uuid.UUID `json:"sessionId"`
}

type SessionStateResponse struct {
	SessionId uuid.UUID           `json:"sessionId"`
	Title     string              `json:"title"`
	Status    string              `json:"status"`
	Busy      bool                `json:"busy"`
	CreatedAt time.Time           `json:"createdAt"`
	State     *store.SessionState `json:"state"`
}

type EndSessionResponse struct {
	SessionId         uuid.UUID `json:"sessionId"`
	EndedAt           time.Time `json:"endedAt"`
	PrunedCheckpoints int64     `json:"prunedCheckpoints"`
}
