package service

import (
	"context"

	"narrative-engine-be/internal/dto"
	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/engine/checkpoint"
	"narrative-engine-be/pkg/engine/turn"
	"narrative-engine-be/pkg/events"

	"github.com/google/uuid"
)

type ICheckpointService interface {
	Save(ctx context.Context, req *dto.SaveCheckpointRequest) (*dto.SaveCheckpointResponse, error)
	List(ctx context.Context, sessionID uuid.UUID, limit int) ([]*dto.CheckpointSummaryResponse, error)
	Restore(ctx context.Context, id uuid.UUID) (*dto.RestoreCheckpointResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type checkpointService struct {
	sessions    ISessionService
	checkpoints *checkpoint.Store
	turns       *turn.Manager
	locks       *SessionLocks
	publisher   events.Publisher
	logger      logger.ILogger
}

func NewCheckpointService(
	sessions ISessionService,
	checkpoints *checkpoint.Store,
	turns *turn.Manager,
	locks *SessionLocks,
	publisher events.Publisher,
	logger logger.ILogger,
) ICheckpointService {
	return &checkpointService{
		sessions:    sessions,
		checkpoints: checkpoints,
		turns:       turns,
		locks:       locks,
		publisher:   publisher,
		logger:      logger,
	}
}

// Save stores the last committed state, never a turn's half-applied one
func (s *checkpointService) Save(ctx context.Context, req *dto.SaveCheckpointRequest) (*dto.SaveCheckpointResponse, error) {
	live, err := s.sessions.Resolve(ctx, req.SessionId)
	if err != nil {
		return nil, err
	}
	snap, err := live.Snapshot()
	if err != nil {
		return nil, err
	}

	id, err := s.checkpoints.Save(ctx, snap, req.Name, entity.CheckpointTypeManual, req.Description)
	if err != nil {
		return nil, err
	}
	publishEvent(ctx, s.publisher, s.logger, events.CheckpointSaved(req.SessionId, id, string(entity.CheckpointTypeManual)))

	return &dto.SaveCheckpointResponse{CheckpointId: id}, nil
}

func (s *checkpointService) List(ctx context.Context, sessionID uuid.UUID, limit int) ([]*dto.CheckpointSummaryResponse, error) {
	summaries, err := s.checkpoints.List(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.CheckpointSummaryResponse, 0, len(summaries))
	for _, cp := range summaries {
		result = append(result, &dto.CheckpointSummaryResponse{
			CheckpointId:       cp.Id,
			SessionId:          cp.SessionId,
			CheckpointName:     cp.Name,
			CheckpointType:     string(cp.Type),
			Description:        cp.Description,
			GameDay:            cp.GameDay,
			GameTime:           cp.GameTime,
			LocationName:       cp.LocationName,
			LocationDescriptor: cp.LocationDescriptor,
			ProtagonistHp:      cp.ProtagonistHp,
			ProtagonistSanity:  cp.ProtagonistSanity,
			CreatedAt:          cp.CreatedAt,
		})
	}
	return result, nil
}

// Restore replaces the live state of an idle session with a checkpoint
func (s *checkpointService) Restore(ctx context.Context, id uuid.UUID) (*dto.RestoreCheckpointResponse, error) {
	st, cp, err := s.checkpoints.Restore(ctx, id)
	if err != nil {
		return nil, err
	}

	live, err := s.sessions.Resolve(ctx, cp.SessionId)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(cp.SessionId)
	defer unlock()

	active, err := s.turns.ActiveTurn(ctx, cp.SessionId)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, ErrTurnInProgress
	}

	st.SessionID = cp.SessionId.String()
	if err := live.Replace(st); err != nil {
		return nil, err
	}
	snap, err := live.Snapshot()
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Persist(ctx, cp.SessionId, snap); err != nil {
		return nil, err
	}
	live.RecordTurn(false)

	publishEvent(ctx, s.publisher, s.logger, events.CheckpointRestored(cp.SessionId, cp.Id))
	s.logger.Info(module, "Checkpoint restored", map[string]interface{}{
		"session_id":    cp.SessionId.String(),
		"checkpoint_id": cp.Id.String(),
		"location":      cp.LocationName,
	})

	return &dto.RestoreCheckpointResponse{
		SessionId:    cp.SessionId,
		CheckpointId: cp.Id,
		LocationName: cp.LocationName,
		GameDay:      cp.GameDay,
		GameTime:     cp.GameTime,
	}, nil
}

func (s *checkpointService) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.checkpoints.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrCheckpointNotFound
	}
	return nil
}
