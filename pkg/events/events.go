package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeSessionStarted     = "SESSION_STARTED"
	TypeSessionEnded       = "SESSION_ENDED"
	TypeTurnCompleted      = "TURN_COMPLETED"
	TypeTurnFailed         = "TURN_FAILED"
	TypeCheckpointSaved    = "CHECKPOINT_SAVED"
	TypeCheckpointRestored = "CHECKPOINT_RESTORED"
)

// Event is anything the engine announces: a type, a flat JSON-friendly
// payload and the moment it happened.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string              { return e.Type }
func (e BaseEvent) Payload() map[string]interface{} { return e.Data }
func (e BaseEvent) Timestamp() time.Time            { return e.OccurredAt }

func newEvent(typ string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: typ, Data: data, OccurredAt: time.Now().UTC()}
}

func SessionStarted(sessionID uuid.UUID, playerID string) BaseEvent {
	return newEvent(TypeSessionStarted, map[string]interface{}{
		"session_id": sessionID.String(),
		"player_id":  playerID,
	})
}

func SessionEnded(sessionID uuid.UUID) BaseEvent {
	return newEvent(TypeSessionEnded, map[string]interface{}{
		"session_id": sessionID.String(),
	})
}

func TurnCompleted(sessionID, turnID uuid.UUID, turnNumber int, simulated bool) BaseEvent {
	return newEvent(TypeTurnCompleted, map[string]interface{}{
		"session_id":  sessionID.String(),
		"turn_id":     turnID.String(),
		"turn_number": turnNumber,
		"simulated":   simulated,
	})
}

func TurnFailed(sessionID, turnID uuid.UUID, message string) BaseEvent {
	return newEvent(TypeTurnFailed, map[string]interface{}{
		"session_id": sessionID.String(),
		"turn_id":    turnID.String(),
		"error":      message,
	})
}

func CheckpointSaved(sessionID, checkpointID uuid.UUID, checkpointType string) BaseEvent {
	return newEvent(TypeCheckpointSaved, map[string]interface{}{
		"session_id":      sessionID.String(),
		"checkpoint_id":   checkpointID.String(),
		"checkpoint_type": checkpointType,
	})
}

func CheckpointRestored(sessionID, checkpointID uuid.UUID) BaseEvent {
	return newEvent(TypeCheckpointRestored, map[string]interface{}{
		"session_id":    sessionID.String(),
		"checkpoint_id": checkpointID.String(),
	})
}

// SessionIDOf reads the session id every engine event carries
func SessionIDOf(e Event) (uuid.UUID, bool) {
	raw, ok := e.Payload()["session_id"].(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}
