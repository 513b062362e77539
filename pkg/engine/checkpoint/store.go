// Package checkpoint persists and restores serialized session state.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/internal/repository/contract"
	"narrative-engine-be/internal/repository/specification"
	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
)

const (
	module = "CHECKPOINT"

	DefaultAutoKeep  = 10
	DefaultListLimit = 20

	scanPageSize = 25
)

var ErrCheckpointNotFound = errors.New("checkpoint not found")

type Store struct {
	repo     contract.CheckpointRepository
	autoKeep int
	logger   logger.ILogger

	mu          sync.Mutex
	lastCreated map[uuid.UUID]time.Time
	now         func() time.Time
}

func NewStore(repo contract.CheckpointRepository, autoKeep int, logger logger.ILogger) *Store {
	if autoKeep <= 0 {
		autoKeep = DefaultAutoKeep
	}
	return &Store{
		repo:        repo,
		autoKeep:    autoKeep,
		logger:      logger,
		lastCreated: make(map[uuid.UUID]time.Time),
		now:         time.Now,
	}
}

// Save serializes state and stores it with its denormalized summary
// columns. Auto checkpoints trigger retention pruning afterwards.
func (s *Store) Save(ctx context.Context, state *store.SessionState, name string, typ entity.CheckpointType, description string) (uuid.UUID, error) {
	if state == nil {
		return uuid.Nil, fmt.Errorf("save checkpoint: nil state")
	}
	if !typ.Valid() {
		return uuid.Nil, fmt.Errorf("save checkpoint: invalid type %q", typ)
	}
	sessionID, err := uuid.Parse(state.SessionID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("save checkpoint: invalid session id %q: %w", state.SessionID, err)
	}

	snapshot := *state
	snapshot.Temp = store.TemporaryInfo{}
	raw, err := json.Marshal(&snapshot)
	if err != nil {
		return uuid.Nil, fmt.Errorf("serialize session state: %w", err)
	}

	cp := &entity.Checkpoint{
		CheckpointSummary: entity.CheckpointSummary{
			Id:                uuid.New(),
			SessionId:         sessionID,
			Name:              name,
			Type:              typ,
			GameDay:           state.GameDay,
			GameTime:          state.GameTime,
			ProtagonistHp:     state.Protagonist.HP,
			ProtagonistSanity: state.Protagonist.Sanity,
		},
		SerializedState: raw,
	}
	if description != "" {
		cp.Description = &description
	}
	if state.CurrentLocation != nil {
		cp.LocationName = state.CurrentLocation.Name
		cp.LocationDescriptor = state.CurrentLocation.Description
	}
	if cp.Name == "" {
		cp.Name = fmt.Sprintf("Day %d %s", state.GameDay, state.GameTime)
		if cp.LocationName != "" {
			cp.Name += " - " + cp.LocationName
		}
	}

	if err := s.create(ctx, cp); err != nil {
		return uuid.Nil, err
	}

	s.logger.Debug(module, "Checkpoint saved", map[string]interface{}{
		"checkpoint_id": cp.Id.String(),
		"session_id":    sessionID.String(),
		"type":          string(typ),
		"location":      cp.LocationName,
	})

	if typ == entity.CheckpointTypeAuto {
		if _, err := s.PruneAuto(ctx, sessionID, s.autoKeep); err != nil {
			s.logger.Warn(module, "Auto checkpoint prune failed", map[string]interface{}{
				"session_id": sessionID.String(),
				"error":      err.Error(),
			})
		}
	}
	return cp.Id, nil
}

// create assigns a creation time strictly after the session's previous
// checkpoint so newest-first ordering is total.
func (s *Store) create(ctx context.Context, cp *entity.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, ok := s.lastCreated[cp.SessionId]
	if !ok {
		latest, err := s.repo.FindSummaries(ctx,
			specification.BySessionID{SessionID: cp.SessionId},
			specification.OrderBy{Field: "created_at", Desc: true},
			specification.Pagination{Limit: 1},
		)
		if err != nil {
			return fmt.Errorf("load latest checkpoint time: %w", err)
		}
		if len(latest) > 0 {
			last = latest[0].CreatedAt.UTC()
		}
	}

	createdAt := s.now().UTC().Truncate(time.Microsecond)
	if !createdAt.After(last) {
		createdAt = last.Add(time.Microsecond)
	}
	cp.CreatedAt = createdAt

	if err := s.repo.Create(ctx, cp); err != nil {
		return fmt.Errorf("insert checkpoint: %w", err)
	}
	s.lastCreated[cp.SessionId] = createdAt
	return nil
}

// LoadByID returns (nil, nil) when the checkpoint does not exist
func (s *Store) LoadByID(ctx context.Context, id uuid.UUID) (*entity.Checkpoint, error) {
	return s.repo.FindOne(ctx, specification.ByID{ID: id})
}

// FindLatestForLocation returns the newest checkpoint taken at loc.
// It matches by location name first and falls back to scanning serialized
// states for the location id. (nil, nil) means a first visit.
func (s *Store) FindLatestForLocation(ctx context.Context, sessionID uuid.UUID, loc store.Location) (*entity.Checkpoint, error) {
	newest := specification.OrderBy{Field: "created_at", Desc: true}

	if loc.Name != "" {
		cp, err := s.repo.FindOne(ctx,
			specification.BySessionID{SessionID: sessionID},
			specification.ByLocationName{Name: loc.Name},
			newest,
		)
		if err != nil {
			return nil, err
		}
		if cp != nil {
			return cp, nil
		}
	}

	if loc.ID == "" {
		return nil, nil
	}
	return s.scanForLocationID(ctx, sessionID, loc.ID)
}

// scanForLocationID walks the session's checkpoints newest-first and
// decodes each until one was taken at locationID.
func (s *Store) scanForLocationID(ctx context.Context, sessionID uuid.UUID, locationID string) (*entity.Checkpoint, error) {
	for offset := 0; ; offset += scanPageSize {
		page, err := s.repo.FindAll(ctx,
			specification.BySessionID{SessionID: sessionID},
			specification.OrderBy{Field: "created_at", Desc: true},
			specification.Pagination{Limit: scanPageSize, Offset: offset},
		)
		if err != nil {
			return nil, err
		}
		for _, cp := range page {
			state, err := Decode(cp)
			if err != nil {
				s.logger.Warn(module, "Skipping undecodable checkpoint", map[string]interface{}{
					"checkpoint_id": cp.Id.String(),
					"error":         err.Error(),
				})
				continue
			}
			if state.CurrentLocation != nil && state.CurrentLocation.ID == locationID {
				return cp, nil
			}
		}
		if len(page) < scanPageSize {
			return nil, nil
		}
	}
}

// List returns summaries newest-first without loading serialized state
func (s *Store) List(ctx context.Context, sessionID uuid.UUID, limit int) ([]*entity.CheckpointSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.FindSummaries(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
}

// PruneAuto keeps the newest keep auto checkpoints of a session and
// deletes the rest. Manual and transition checkpoints are never touched.
func (s *Store) PruneAuto(ctx context.Context, sessionID uuid.UUID, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	ids, err := s.repo.FindIDs(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.ByCheckpointType{Type: string(entity.CheckpointTypeAuto)},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return 0, fmt.Errorf("list auto checkpoints: %w", err)
	}
	if len(ids) <= keep {
		return 0, nil
	}

	deleted, err := s.repo.DeleteByIDs(ctx, ids[keep:])
	if err != nil {
		return 0, fmt.Errorf("delete auto checkpoints: %w", err)
	}
	s.logger.Debug(module, "Pruned auto checkpoints", map[string]interface{}{
		"session_id": sessionID.String(),
		"deleted":    deleted,
	})
	return deleted, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.Delete(ctx, id)
}

// Restore loads a checkpoint and decodes its session state
func (s *Store) Restore(ctx context.Context, id uuid.UUID) (*store.SessionState, *entity.Checkpoint, error) {
	cp, err := s.LoadByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if cp == nil {
		return nil, nil, ErrCheckpointNotFound
	}
	state, err := Decode(cp)
	if err != nil {
		return nil, nil, err
	}
	return state, cp, nil
}

func Decode(cp *entity.Checkpoint) (*store.SessionState, error) {
	state, err := store.Decode(cp.SerializedState)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", cp.Id, err)
	}
	return state, nil
}
