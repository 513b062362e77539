package entity

import (
	"time"

	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
)

type TurnStatus string

const (
	TurnStatusProcessing TurnStatus = "processing"
	TurnStatusCompleted  TurnStatus = "completed"
	TurnStatusError      TurnStatus = "error"
)

func (s TurnStatus) IsTerminal() bool {
	return s == TurnStatusCompleted || s == TurnStatusError
}

type Turn struct {
	Id               uuid.UUID
	SessionId        uuid.UUID
	TurnNumber       int
	InputText        string
	IsSimulated      bool
	ParticipantId    *string
	ParticipantName  *string
	IntentAnalysis   *store.IntentAnalysis
	ActionOutcomes   []store.ActionOutcome
	LocationDecision *store.LocationDecision
	NarrativeOutput  *string
	RevealedFacts    []string
	LocationId       *string
	LocationName     *string
	Descriptor       *string
	Status           TurnStatus
	ErrorMessage     *string
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// TurnProgress is a partial update written by one pipeline stage.
// Nil fields are left untouched.
type TurnProgress struct {
	ParticipantId    *string
	ParticipantName  *string
	IntentAnalysis   *store.IntentAnalysis
	ActionOutcomes   []store.ActionOutcome
	LocationDecision *store.LocationDecision
	LocationId       *string
	LocationName     *string
	Descriptor       *string
}

func (p TurnProgress) IsEmpty() bool {
	return p.ParticipantId == nil && p.ParticipantName == nil && p.IntentAnalysis == nil &&
		p.ActionOutcomes == nil && p.LocationDecision == nil && p.LocationId == nil &&
		p.LocationName == nil && p.Descriptor == nil
}
