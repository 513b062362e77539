package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/internal/repository/memory"
	"narrative-engine-be/pkg/engine/pipeline"
	"narrative-engine-be/pkg/events"
	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
)

const (
	progressionModule = "PROGRESSION"

	DefaultProgressionInterval = 30 * time.Second
	DefaultProgressionTension  = 0.6
)

// IProgressionService advances sessions the player has left alone by
// synthesizing simulated turns for a participant in the scene.
type IProgressionService interface {
	// Consume subscribes to completed turns and starts the periodic sweep.
	// Both stop when ctx is done.
	Consume(ctx context.Context) error
	// Check evaluates one session and returns the simulated turn it
	// started, or nil when nothing was due.
	Check(ctx context.Context, sessionID uuid.UUID) (*entity.Turn, error)
}

type progressionService struct {
	bus       *events.Bus
	registry  *memory.SessionRegistry
	turns     ITurnService
	interval  time.Duration
	threshold float64
	logger    logger.ILogger
}

func NewProgressionService(
	bus *events.Bus,
	registry *memory.SessionRegistry,
	turns ITurnService,
	interval time.Duration,
	threshold float64,
	logger logger.ILogger,
) IProgressionService {
	if interval <= 0 {
		interval = DefaultProgressionInterval
	}
	if threshold <= 0 {
		threshold = DefaultProgressionTension
	}
	return &progressionService{
		bus:       bus,
		registry:  registry,
		turns:     turns,
		interval:  interval,
		threshold: threshold,
		logger:    logger,
	}
}

func (p *progressionService) Consume(ctx context.Context) error {
	if p.bus != nil {
		err := p.bus.Subscribe(ctx, events.TypeTurnCompleted, func(ctx context.Context, event events.Event) {
			sessionID, ok := events.SessionIDOf(event)
			if !ok {
				return
			}
			p.checkAndLog(ctx, sessionID)
		})
		if err != nil {
			return fmt.Errorf("subscribe to completed turns: %w", err)
		}
	}

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, id := range p.registry.IDs() {
					p.checkAndLog(ctx, id)
				}
			}
		}
	}()
	return nil
}

func (p *progressionService) checkAndLog(ctx context.Context, sessionID uuid.UUID) {
	if _, err := p.Check(ctx, sessionID); err != nil {
		p.logger.Warn(progressionModule, "Progression check failed", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}
}

func (p *progressionService) Check(ctx context.Context, sessionID uuid.UUID) (*entity.Turn, error) {
	live, ok := p.registry.Peek(sessionID)
	if !ok {
		return nil, nil
	}
	snap, err := live.Snapshot()
	if err != nil {
		return nil, err
	}
	if snap.Tension < p.threshold {
		return nil, nil
	}
	actor := pickActor(snap)
	if actor == nil {
		return nil, nil
	}

	t, err := p.turns.Submit(ctx, sessionID, pipeline.Input{
		Text:          fmt.Sprintf("%s acts while the tension builds.", actor.Name),
		Simulated:     true,
		ParticipantID: actor.ID,
	})
	switch {
	case errors.Is(err, ErrTurnInProgress), errors.Is(err, ErrSimulationCapped), errors.Is(err, ErrSessionNotFound):
		p.logger.Debug(progressionModule, "Simulated turn skipped", map[string]interface{}{
			"session_id": sessionID.String(),
			"reason":     err.Error(),
		})
		return nil, nil
	case err != nil:
		return nil, err
	}

	p.logger.Info(progressionModule, "Simulated turn started", map[string]interface{}{
		"session_id":  sessionID.String(),
		"turn_id":     t.Id.String(),
		"participant": actor.ID,
		"tension":     snap.Tension,
	})
	return t, nil
}

// pickActor chooses the first able participant sharing the protagonist's location
func pickActor(s *store.SessionState) *store.Participant {
	ids := make([]string, 0, len(s.Participants))
	for id := range s.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	here := ""
	if s.CurrentLocation != nil {
		here = s.CurrentLocation.ID
	}
	for _, id := range ids {
		p := s.Participants[id]
		if p.HP <= 0 {
			continue
		}
		if p.LocationID == "" || p.LocationID == here {
			return p
		}
	}
	return nil
}
