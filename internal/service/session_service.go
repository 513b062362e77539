package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"narrative-engine-be/internal/config"
	"narrative-engine-be/internal/dto"
	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/internal/repository/cache"
	"narrative-engine-be/internal/repository/memory"
	"narrative-engine-be/internal/repository/specification"
	"narrative-engine-be/internal/repository/unitofwork"
	"narrative-engine-be/pkg/engine/checkpoint"
	"narrative-engine-be/pkg/engine/turn"
	"narrative-engine-be/pkg/events"
	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
)

const (
	protagonistID    = "protagonist"
	defaultHitPoints = 100
	defaultSanity    = 100
	endedAutoKeep    = 1
)

type ISessionService interface {
	Start(ctx context.Context, playerID string, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error)
	State(ctx context.Context, sessionID uuid.UUID) (*dto.SessionStateResponse, error)
	End(ctx context.Context, sessionID uuid.UUID) (*dto.EndSessionResponse, error)

	// Resolve returns the live session, loading it from redis or the
	// database when this process does not hold it.
	Resolve(ctx context.Context, sessionID uuid.UUID) (*memory.LiveSession, error)
	// Persist writes a committed state to the mirror and the session row
	Persist(ctx context.Context, sessionID uuid.UUID, st *store.SessionState) error
	// Evict drops the in-memory copy without ending the session
	Evict(sessionID uuid.UUID)
}

type sessionService struct {
	uowFactory  unitofwork.RepositoryFactory
	registry    *memory.SessionRegistry
	mirror      *cache.StateMirror
	checkpoints *checkpoint.Store
	turns       *turn.Manager
	locks       *SessionLocks
	publisher   events.Publisher
	cfg         config.EngineConfig
	logger      logger.ILogger

	resolveMu sync.Mutex
}

func NewSessionService(
	uowFactory unitofwork.RepositoryFactory,
	registry *memory.SessionRegistry,
	mirror *cache.StateMirror,
	checkpoints *checkpoint.Store,
	turns *turn.Manager,
	locks *SessionLocks,
	publisher events.Publisher,
	cfg config.EngineConfig,
	logger logger.ILogger,
) ISessionService {
	return &sessionService{
		uowFactory:  uowFactory,
		registry:    registry,
		mirror:      mirror,
		checkpoints: checkpoints,
		turns:       turns,
		locks:       locks,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger,
	}
}

func slug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func (s *sessionService) newState(sessionID uuid.UUID, req *dto.StartSessionRequest) *store.SessionState {
	start := &store.Location{Name: s.cfg.StartLocationName}
	if req.StartLocation != nil {
		start = &store.Location{
			ID:          req.StartLocation.Id,
			Name:        req.StartLocation.Name,
			Description: req.StartLocation.Description,
			Exits:       req.StartLocation.Exits,
		}
	}
	if start.ID == "" {
		start.ID = slug(start.Name)
	}

	protagonist := store.Participant{
		ID:     protagonistID,
		Name:   req.ProtagonistName,
		HP:     orDefault(req.ProtagonistHp, defaultHitPoints),
		Sanity: orDefault(req.ProtagonistSanity, defaultSanity),
	}
	st := store.NewSessionState(sessionID.String(), protagonist, start)
	st.ActionCap = orDefault(req.ActionCap, orDefault(s.cfg.ActionCap, store.DefaultActionCap))

	for _, p := range req.Participants {
		st.Participants[p.Id] = &store.Participant{
			ID:         p.Id,
			Name:       p.Name,
			HP:         orDefault(p.Hp, defaultHitPoints),
			Sanity:     orDefault(p.Sanity, defaultSanity),
			Status:     p.Status,
			LocationID: start.ID,
		}
	}
	return st
}

func (s *sessionService) Start(ctx context.Context, playerID string, req *dto.StartSessionRequest) (*dto.StartSessionResponse, error) {
	sessionID := uuid.New()
	st := s.newState(sessionID, req)

	raw, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("serialize initial state: %w", err)
	}

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("%s at %s", req.ProtagonistName, st.CurrentLocation.Name)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	err = uow.GameSessionRepository().Create(ctx, &entity.GameSession{
		Id:           sessionID,
		PlayerId:     playerID,
		Title:        title,
		Status:       entity.GameSessionActive,
		CurrentState: raw,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	live, err := memory.NewLiveSession(sessionID, playerID, st, s.logger)
	if err != nil {
		return nil, err
	}
	s.registry.Put(live)

	if err := s.mirror.Save(ctx, sessionID, raw); err != nil {
		s.logger.Warn(module, "Failed to mirror new session", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}

	// Gives the starting location a checkpoint to come back to
	if _, err := s.checkpoints.Save(ctx, st, "", entity.CheckpointTypeAuto, "session start"); err != nil {
		s.logger.Warn(module, "Failed to save starting checkpoint", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}

	publishEvent(ctx, s.publisher, s.logger, events.SessionStarted(sessionID, playerID))
	s.logger.Info(module, "Session started", map[string]interface{}{
		"session_id": sessionID.String(),
		"player_id":  playerID,
		"location":   st.CurrentLocation.Name,
	})

	return &dto.StartSessionResponse{SessionId: sessionID}, nil
}

func (s *sessionService) activeRow(ctx context.Context, sessionID uuid.UUID) (*entity.GameSession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	gs, err := uow.GameSessionRepository().FindOne(ctx, specification.ByID{ID: sessionID})
	if err != nil {
		return nil, err
	}
	if !gs.IsActive() {
		return nil, ErrSessionNotFound
	}
	return gs, nil
}

func (s *sessionService) Resolve(ctx context.Context, sessionID uuid.UUID) (*memory.LiveSession, error) {
	if live, ok := s.registry.Get(sessionID); ok {
		return live, nil
	}

	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	if live, ok := s.registry.Get(sessionID); ok {
		return live, nil
	}

	gs, err := s.activeRow(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	st, err := s.mirror.Load(ctx, sessionID)
	if err != nil {
		s.logger.Warn(module, "Mirror unavailable, loading state from database", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}
	source := "mirror"
	if st == nil {
		if st, err = store.Decode(gs.CurrentState); err != nil {
			return nil, fmt.Errorf("session %s: %w", sessionID, err)
		}
		source = "database"
	}

	live, err := memory.NewLiveSession(sessionID, gs.PlayerId, st, s.logger)
	if err != nil {
		return nil, err
	}
	s.registry.Put(live)

	s.logger.Info(module, "Session reloaded", map[string]interface{}{
		"session_id": sessionID.String(),
		"source":     source,
	})
	return live, nil
}

func (s *sessionService) Persist(ctx context.Context, sessionID uuid.UUID, st *store.SessionState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("serialize session state: %w", err)
	}
	if err := s.mirror.Save(ctx, sessionID, raw); err != nil {
		s.logger.Warn(module, "Failed to mirror session state", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.GameSessionRepository().UpdateState(ctx, sessionID, raw)
}

func (s *sessionService) State(ctx context.Context, sessionID uuid.UUID) (*dto.SessionStateResponse, error) {
	gs, err := s.activeRow(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	live, err := s.Resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := live.Snapshot()
	if err != nil {
		return nil, err
	}
	active, err := s.turns.ActiveTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &dto.SessionStateResponse{
		SessionId: sessionID,
		Title:     gs.Title,
		Status:    string(gs.Status),
		Busy:      active != nil,
		CreatedAt: gs.CreatedAt,
		State:     snap,
	}, nil
}

func (s *sessionService) End(ctx context.Context, sessionID uuid.UUID) (*dto.EndSessionResponse, error) {
	if _, err := s.activeRow(ctx, sessionID); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	active, err := s.turns.ActiveTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrTurnInProgress
	}

	endedAt := time.Now().UTC()
	var pruned int64
	err = s.uowFactory.Transaction(ctx, func(uow unitofwork.UnitOfWork) error {
		if err := uow.GameSessionRepository().MarkEnded(ctx, sessionID, endedAt); err != nil {
			return err
		}
		n, err := checkpoint.NewStore(uow.CheckpointRepository(), endedAutoKeep, s.logger).PruneAuto(ctx, sessionID, endedAutoKeep)
		pruned = n
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Evict(sessionID)
	if err := s.mirror.Delete(ctx, sessionID); err != nil {
		s.logger.Warn(module, "Failed to drop mirrored state", map[string]interface{}{
			"session_id": sessionID.String(),
			"error":      err.Error(),
		})
	}
	publishEvent(ctx, s.publisher, s.logger, events.SessionEnded(sessionID))

	s.logger.Info(module, "Session ended", map[string]interface{}{
		"session_id":         sessionID.String(),
		"pruned_checkpoints": pruned,
	})

	return &dto.EndSessionResponse{
		SessionId:         sessionID,
		EndedAt:           endedAt,
		PrunedCheckpoints: pruned,
	}, nil
}

func (s *sessionService) Evict(sessionID uuid.UUID) {
	s.registry.Evict(sessionID)
}

