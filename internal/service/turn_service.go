package service

import (
	"context"

	"narrative-engine-be/internal/dto"
	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/internal/repository/memory"
	"narrative-engine-be/pkg/engine/checkpoint"
	"narrative-engine-be/pkg/engine/collaborator"
	"narrative-engine-be/pkg/engine/pipeline"
	"narrative-engine-be/pkg/engine/state"
	"narrative-engine-be/pkg/engine/turn"
	"narrative-engine-be/pkg/events"

	"github.com/google/uuid"
)

const DefaultMaxChainedSimulated = 5

type ITurnService interface {
	turn.Listener

	Create(ctx context.Context, req *dto.CreateTurnRequest) (*dto.CreateTurnResponse, error)
	// Submit starts a turn for any input, external or simulated
	Submit(ctx context.Context, sessionID uuid.UUID, input pipeline.Input) (*entity.Turn, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.TurnResponse, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*dto.TurnResponse, error)
	Conversation(ctx context.Context, sessionID uuid.UUID, limit int) ([]*dto.ConversationEntryResponse, error)
}

type turnService struct {
	sessions    ISessionService
	turns       *turn.Manager
	checkpoints *checkpoint.Store
	locks       *SessionLocks
	publisher   events.Publisher
	maxChained  int
	logger      logger.ILogger
}

func NewTurnService(
	sessions ISessionService,
	turns *turn.Manager,
	checkpoints *checkpoint.Store,
	locks *SessionLocks,
	publisher events.Publisher,
	maxChained int,
	logger logger.ILogger,
) ITurnService {
	if maxChained <= 0 {
		maxChained = DefaultMaxChainedSimulated
	}
	return &turnService{
		sessions:    sessions,
		turns:       turns,
		checkpoints: checkpoints,
		locks:       locks,
		publisher:   publisher,
		maxChained:  maxChained,
		logger:      logger,
	}
}

func (s *turnService) Create(ctx context.Context, req *dto.CreateTurnRequest) (*dto.CreateTurnResponse, error) {
	t, err := s.Submit(ctx, req.SessionId, pipeline.Input{Text: req.Input})
	if err != nil {
		return nil, err
	}
	return &dto.CreateTurnResponse{
		TurnId:     t.Id,
		TurnNumber: t.TurnNumber,
		Status:     string(t.Status),
	}, nil
}

func (s *turnService) Submit(ctx context.Context, sessionID uuid.UUID, input pipeline.Input) (*entity.Turn, error) {
	live, err := s.sessions.Resolve(ctx, sessionID)
	if err != nil {
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

	if input.Simulated {
		if live.ChainedSimulated() >= s.maxChained {
			return nil, ErrSimulationCapped
		}
		if input.ParticipantID != "" {
			if _, ok := live.State().Session().Participant(input.ParticipantID); !ok {
				return nil, ErrInvalidParticipant
			}
		}
	}

	t, err := s.turns.StartTurn(ctx, turn.Job{
		SessionID: sessionID,
		State:     live.State(),
		Input:     input,
		Settle:    s.settle(live),
	})
	if err != nil {
		return nil, err
	}
	live.RecordTurn(input.Simulated)
	return t, nil
}

// settle runs while the turn is still processing, so the next turn of the
// session always starts from the committed state.
func (s *turnService) settle(live *memory.LiveSession) func(ctx context.Context, st *state.Manager, result *collaborator.NarrativeResult, runErr error) {
	return func(ctx context.Context, st *state.Manager, result *collaborator.NarrativeResult, runErr error) {
		fields := map[string]interface{}{"session_id": live.ID.String()}

		if runErr != nil {
			if err := live.Rollback(); err != nil {
				fields["error"] = err.Error()
				s.logger.Error(module, "Failed to roll back session state", fields)
			}
			return
		}

		snap, err := live.Commit()
		if err != nil {
			fields["error"] = err.Error()
			s.logger.Error(module, "Failed to commit session state", fields)
			return
		}
		if err := s.sessions.Persist(ctx, live.ID, snap); err != nil {
			fields["error"] = err.Error()
			s.logger.Error(module, "Failed to persist session state", fields)
		}
		id, err := s.checkpoints.Save(ctx, snap, "", entity.CheckpointTypeAuto, "")
		if err != nil {
			fields["error"] = err.Error()
			s.logger.Warn(module, "Auto checkpoint failed", fields)
			return
		}
		publishEvent(ctx, s.publisher, s.logger, events.CheckpointSaved(live.ID, id, string(entity.CheckpointTypeAuto)))
	}
}

// TurnUpdated publishes the terminal transition of every turn
func (s *turnService) TurnUpdated(ctx context.Context, t *entity.Turn) {
	switch t.Status {
	case entity.TurnStatusCompleted:
		publishEvent(ctx, s.publisher, s.logger, events.TurnCompleted(t.SessionId, t.Id, t.TurnNumber, t.IsSimulated))
	case entity.TurnStatusError:
		msg := ""
		if t.ErrorMessage != nil {
			msg = *t.ErrorMessage
		}
		publishEvent(ctx, s.publisher, s.logger, events.TurnFailed(t.SessionId, t.Id, msg))
	}
}

func (s *turnService) Get(ctx context.Context, id uuid.UUID) (*dto.TurnResponse, error) {
	t, err := s.turns.GetTurn(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewTurnResponse(t), nil
}

func (s *turnService) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*dto.TurnResponse, error) {
	turns, err := s.turns.ListTurns(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	result := make([]*dto.TurnResponse, 0, len(turns))
	for _, t := range turns {
		result = append(result, dto.NewTurnResponse(t))
	}
	return result, nil
}

func (s *turnService) Conversation(ctx context.Context, sessionID uuid.UUID, limit int) ([]*dto.ConversationEntryResponse, error) {
	entries, err := s.turns.Conversation(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	result := make([]*dto.ConversationEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, &dto.ConversationEntryResponse{
			TurnNumber:      e.TurnNumber,
			InputText:       e.InputText,
			NarrativeOutput: e.NarrativeOutput,
			IsSimulated:     e.IsSimulated,
		})
	}
	return result, nil
}
