package service

import (
	"context"

	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/events"
)

// publishEvent is fire-and-forget: a failing sink is logged, never returned
func publishEvent(ctx context.Context, publisher events.Publisher, log logger.ILogger, event events.Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.Warn(module, "Failed to publish event", map[string]interface{}{
			"event": event.EventType(),
			"error": err.Error(),
		})
	}
}
