package service

import (
	"errors"

	"narrative-engine-be/pkg/engine/checkpoint"
	"narrative-engine-be/pkg/engine/turn"

	"github.com/gofiber/fiber/v2"
)

const module = "SERVICE"

var (
	ErrSessionNotFound    = errors.New("no active session")
	ErrTurnInProgress     = errors.New("a turn is already processing for this session")
	ErrTurnNotFound       = turn.ErrTurnNotFound
	ErrCheckpointNotFound = checkpoint.ErrCheckpointNotFound
	ErrInvalidParticipant = errors.New("unknown participant")
	ErrSimulationCapped   = errors.New("simulated turn limit reached")
)

// ErrorStatuses is handed to the error middleware
var ErrorStatuses = map[error]int{
	ErrSessionNotFound:    fiber.StatusNotFound,
	ErrTurnInProgress:     fiber.StatusConflict,
	ErrTurnNotFound:       fiber.StatusNotFound,
	ErrCheckpointNotFound: fiber.StatusNotFound,
	ErrInvalidParticipant: fiber.StatusBadRequest,
	ErrSimulationCapped:   fiber.StatusConflict,
}
