package dto

import (
	"time"

	"narrative-engine-be/internal/entity"

	"github.com/google/uuid"
)

type CreateTurnRequest struct {
	SessionId uuid.UUID `json:"sessionId" validate:"required"`
	Input     string    `json:"input" validate:"required,max=2000"`
}

type CreateTurnResponse struct {
	TurnId     uuid.UUID `json:"turnId"`
	TurnNumber int       `json:"turnNumber"`
	Status     string    `json:"status"`
}

type TurnResponse struct {
	TurnId          uuid.UUID  `json:"turnId"`
	SessionId       uuid.UUID  `json:"sessionId"`
	TurnNumber      int        `json:"turnNumber"`
	InputText       string     `json:"inputText"`
	IsSimulated     bool       `json:"isSimulated"`
	ParticipantName *string    `json:"participantName,omitempty"`
	NarrativeOutput *string    `json:"narrativeOutput"`
	RevealedFacts   []string   `json:"revealedFacts,omitempty"`
	Status          string     `json:"status"`
	ErrorMessage    *string    `json:"errorMessage,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	CompletedAt     *time.Time `json:"completedAt"`
	LocationId      *string    `json:"locationId,omitempty"`
	LocationName    *string    `json:"locationName,omitempty"`
}

type ConversationEntryResponse struct {
	TurnNumber      int     `json:"turnNumber"`
	InputText       string  `json:"inputText"`
	NarrativeOutput *string `json:"narrativeOutput"`
	IsSimulated     bool    `json:"isSimulated"`
}

func NewTurnResponse(t *entity.Turn) *TurnResponse {
	return &TurnResponse{
		TurnId:          t.Id,
		SessionId:       t.SessionId,
		TurnNumber:      t.TurnNumber,
		InputText:       t.InputText,
		IsSimulated:     t.IsSimulated,
		ParticipantName: t.ParticipantName,
		NarrativeOutput: t.NarrativeOutput,
		RevealedFacts:   t.RevealedFacts,
		Status:          string(t.Status),
		ErrorMessage:    t.ErrorMessage,
		StartedAt:       t.StartedAt,
		CompletedAt:     t.CompletedAt,
		LocationId:      t.LocationId,
		LocationName:    t.LocationName,
	}
}
