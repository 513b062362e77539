package entity

import (
	"time"

	"github.com/google/uuid"
)

type GameSessionStatus string

const (
	GameSessionActive GameSessionStatus = "active"
	GameSessionEnded  GameSessionStatus = "ended"
)

type GameSession struct {
	Id           uuid.UUID
	PlayerId     string
	Title        string
	Status       GameSessionStatus
	CurrentState []byte
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	EndedAt      *time.Time
}

func (s *GameSession) IsActive() bool {
	return s != nil && s.Status == GameSessionActive
}
