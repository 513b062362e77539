package service

import (
	"context"
	"fmt"

	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/events"
	pktNats "narrative-engine-be/pkg/nats"
)

const syncModule = "SESSION_SYNC"

// EventSubscriber is the durable side of the cluster event stream
type EventSubscriber interface {
	Subscribe(subject string, durableName string, handler pktNats.EventHandler) error
}

// SessionSyncService drops the in-memory copy of a session once any
// instance ends it, so no process keeps serving a stale state.
type SessionSyncService struct {
	subscriber EventSubscriber
	sessions   ISessionService
	instanceID string
	logger     logger.ILogger
}

func NewSessionSyncService(sub EventSubscriber, sessions ISessionService, instanceID string, log logger.ILogger) *SessionSyncService {
	return &SessionSyncService{
		subscriber: sub,
		sessions:   sessions,
		instanceID: instanceID,
		logger:     log,
	}
}

// Start subscribes with a durable consumer per instance, every instance
// sees every SESSION_ENDED.
func (s *SessionSyncService) Start() error {
	if s.subscriber == nil {
		s.logger.Warn(syncModule, "No event stream, cross-instance eviction disabled", nil)
		return nil
	}
	durable := fmt.Sprintf("session-sync-%s", s.instanceID)
	if err := s.subscriber.Subscribe(pktNats.Subject(events.TypeSessionEnded), durable, s.handle); err != nil {
		return err
	}
	s.logger.Info(syncModule, "Listening for ended sessions", map[string]interface{}{"durable": durable})
	return nil
}

func (s *SessionSyncService) handle(ctx context.Context, event events.Event) error {
	id, ok := events.SessionIDOf(event)
	if !ok {
		s.logger.Warn(syncModule, "Event without a session id", map[string]interface{}{"type": event.EventType()})
		return nil
	}
	s.sessions.Evict(id)
	s.logger.Debug(syncModule, "Evicted ended session", map[string]interface{}{"session_id": id.String()})
	return nil
}
