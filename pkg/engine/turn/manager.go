// Package turn owns the durable turn record around one pipeline run: it
// hands out the turn id synchronously and finishes the record from a
// supervised background goroutine.
package turn

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/internal/repository/contract"
	"narrative-engine-be/internal/repository/specification"
	"narrative-engine-be/pkg/engine/collaborator"
	"narrative-engine-be/pkg/engine/pipeline"
	"narrative-engine-be/pkg/engine/state"

	"github.com/google/uuid"
)

const (
	module = "TURN"

	DefaultStaleAfter        = 5 * time.Minute
	DefaultListLimit         = 20
	DefaultConversationLimit = 50

	StaleMessage = "turn timed out"
)

var ErrTurnNotFound = errors.New("turn not found")

// Runner executes the pipeline for one turn
type Runner interface {
	Run(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error)
}

// Listener is told about every persisted change of a turn
type Listener interface {
	TurnUpdated(ctx context.Context, turn *entity.Turn)
}

// Job describes the work behind one turn
type Job struct {
	SessionID uuid.UUID
	State     *state.Manager
	Input     pipeline.Input

	// Settle runs after the pipeline returns and before the turn turns
	// terminal, while the state still belongs to this turn. runErr is set
	// for failed, panicked and timed-out runs.
	Settle func(ctx context.Context, st *state.Manager, result *collaborator.NarrativeResult, runErr error)
}

type Final struct {
	NarrativeOutput string
	RevealedFacts   []string
}

type ConversationEntry struct {
	TurnNumber      int
	InputText       string
	NarrativeOutput *string
	IsSimulated     bool
}

// runningTurn tracks a turn whose goroutine has not returned yet
type runningTurn struct {
	sessionID uuid.UUID
	cancel    context.CancelFunc
	timedOut  bool
	settling  bool
}

type Manager struct {
	repo       contract.TurnRepository
	runner     Runner
	staleAfter time.Duration
	logger     logger.ILogger

	listenersMu sync.RWMutex
	listeners   []Listener

	runningMu sync.Mutex
	running   map[uuid.UUID]*runningTurn

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

var _ pipeline.ProgressSink = (*Manager)(nil)

func NewManager(repo contract.TurnRepository, runner Runner, staleAfter time.Duration, logger logger.ILogger) *Manager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	base, cancel := context.WithCancel(context.Background())
	return &Manager{
		repo:       repo,
		runner:     runner,
		staleAfter: staleAfter,
		logger:     logger,
		running:    make(map[uuid.UUID]*runningTurn),
		base:       base,
		cancel:     cancel,
		now:        time.Now,
	}
}

func (m *Manager) AddListener(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// StartTurn persists a processing turn, schedules the pipeline and returns
// without waiting for it.
func (m *Manager) StartTurn(ctx context.Context, job Job) (*entity.Turn, error) {
	last, err := m.repo.MaxTurnNumber(ctx, job.SessionID)
	if err != nil {
		return nil, fmt.Errorf("next turn number: %w", err)
	}

	turn := &entity.Turn{
		Id:          uuid.New(),
		SessionId:   job.SessionID,
		TurnNumber:  last + 1,
		InputText:   job.Input.Text,
		IsSimulated: job.Input.Simulated,
		Status:      entity.TurnStatusProcessing,
		StartedAt:   m.now().UTC(),
	}
	if err := m.repo.Create(ctx, turn); err != nil {
		return nil, fmt.Errorf("create turn: %w", err)
	}

	m.logger.Info(module, "Turn started", map[string]interface{}{
		"turn_id":     turn.Id.String(),
		"session_id":  job.SessionID.String(),
		"turn_number": turn.TurnNumber,
		"simulated":   turn.IsSimulated,
	})
	m.notify(ctx, turn)

	runCtx, cancel := context.WithCancel(m.base)
	m.runningMu.Lock()
	m.running[turn.Id] = &runningTurn{sessionID: job.SessionID, cancel: cancel}
	m.runningMu.Unlock()

	m.wg.Add(1)
	go m.execute(runCtx, turn.Id, job)

	return turn, nil
}

func (m *Manager) execute(ctx context.Context, turnID uuid.UUID, job Job) {
	defer m.wg.Done()
	defer m.release(turnID)
	finishCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(module, "Turn finalization panicked", map[string]interface{}{
				"turn_id": turnID.String(),
				"panic":   fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			})
			if _, err := m.MarkError(finishCtx, turnID, fmt.Errorf("turn panicked: %v", r)); err != nil {
				m.logger.Error(module, "Failed to mark panicked turn", map[string]interface{}{
					"turn_id": turnID.String(),
					"error":   err.Error(),
				})
			}
		}
	}()

	exec := pipeline.NewExecution(turnID, job.SessionID, job.Input, job.State, m)
	result, runErr := m.run(ctx, turnID, exec)
	if runErr == nil && result == nil {
		runErr = errors.New("pipeline returned no result")
	}

	// A turn that timed out while running keeps none of its effects
	if m.beginSettle(turnID) {
		result, runErr = nil, errors.New(StaleMessage)
	}

	if job.Settle != nil {
		job.Settle(finishCtx, job.State, result, runErr)
	}

	var err error
	if runErr != nil {
		_, err = m.MarkError(finishCtx, turnID, runErr)
	} else {
		_, err = m.CompleteTurn(finishCtx, turnID, Final{
			NarrativeOutput: result.NarrativeText,
			RevealedFacts:   result.RevealedFacts,
		})
	}
	if err != nil {
		m.logger.Error(module, "Failed to finalize turn", map[string]interface{}{
			"turn_id": turnID.String(),
			"error":   err.Error(),
		})
	}
}

// run turns a runner panic into an error so the turn still settles
func (m *Manager) run(ctx context.Context, turnID uuid.UUID, exec *pipeline.Execution) (result *collaborator.NarrativeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(module, "Turn panicked", map[string]interface{}{
				"turn_id": turnID.String(),
				"panic":   fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			})
			result, err = nil, fmt.Errorf("turn panicked: %v", r)
		}
	}()
	return m.runner.Run(ctx, exec)
}

// beginSettle stops the turn from being expired and reports whether it
// already was.
func (m *Manager) beginSettle(turnID uuid.UUID) bool {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	r, ok := m.running[turnID]
	if !ok {
		return false
	}
	r.settling = true
	return r.timedOut
}

// expire cancels a stale turn's pipeline. It returns false when the turn
// is already settling and will finish on its own.
func (m *Manager) expire(turnID uuid.UUID) bool {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	r, ok := m.running[turnID]
	if !ok {
		return true
	}
	if r.settling {
		return false
	}
	r.timedOut = true
	r.cancel()
	return true
}

func (m *Manager) release(turnID uuid.UUID) {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	if r, ok := m.running[turnID]; ok {
		r.cancel()
		delete(m.running, turnID)
	}
}

// unwinding returns a timed-out turn of the session whose goroutine is
// still running
func (m *Manager) unwinding(sessionID uuid.UUID) (uuid.UUID, bool) {
	m.runningMu.Lock()
	defer m.runningMu.Unlock()
	for id, r := range m.running {
		if r.sessionID == sessionID && r.timedOut {
			return id, true
		}
	}
	return uuid.Nil, false
}

// GetTurn reads the current record. A turn processing for longer than the
// staleness ceiling is finalized as an error before it is returned.
func (m *Manager) GetTurn(ctx context.Context, id uuid.UUID) (*entity.Turn, error) {
	turn, err := m.repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if turn == nil {
		return nil, ErrTurnNotFound
	}
	return m.surface(ctx, turn)
}

func (m *Manager) surface(ctx context.Context, turn *entity.Turn) (*entity.Turn, error) {
	if !m.IsStale(turn) || !m.expire(turn.Id) {
		return turn, nil
	}
	if _, err := m.MarkError(ctx, turn.Id, errors.New(StaleMessage)); err != nil {
		return nil, err
	}
	fresh, err := m.repo.FindOne(ctx, specification.ByID{ID: turn.Id})
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, ErrTurnNotFound
	}
	return fresh, nil
}

func (m *Manager) IsStale(turn *entity.Turn) bool {
	return turn.Status == entity.TurnStatusProcessing && m.now().Sub(turn.StartedAt) > m.staleAfter
}

// MarkError moves a processing turn to error. Calls on a terminal turn
// change nothing and report false.
func (m *Manager) MarkError(ctx context.Context, id uuid.UUID, cause error) (bool, error) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	completedAt := m.now().UTC()
	changed, err := m.repo.Finalize(ctx, &entity.Turn{
		Id:           id,
		Status:       entity.TurnStatusError,
		ErrorMessage: &msg,
		CompletedAt:  &completedAt,
	})
	if err != nil {
		return false, fmt.Errorf("mark turn error: %w", err)
	}
	if changed {
		m.logger.Warn(module, "Turn failed", map[string]interface{}{
			"turn_id": id.String(),
			"error":   msg,
		})
		m.notifyByID(ctx, id)
	}
	return changed, nil
}

// CompleteTurn is only valid from processing
func (m *Manager) CompleteTurn(ctx context.Context, id uuid.UUID, final Final) (bool, error) {
	completedAt := m.now().UTC()
	facts := final.RevealedFacts
	if facts == nil {
		facts = []string{}
	}
	changed, err := m.repo.Finalize(ctx, &entity.Turn{
		Id:              id,
		Status:          entity.TurnStatusCompleted,
		NarrativeOutput: &final.NarrativeOutput,
		RevealedFacts:   facts,
		CompletedAt:     &completedAt,
	})
	if err != nil {
		return false, fmt.Errorf("complete turn: %w", err)
	}
	if changed {
		m.logger.Info(module, "Turn completed", map[string]interface{}{
			"turn_id": id.String(),
		})
		m.notifyByID(ctx, id)
	}
	return changed, nil
}

// UpdateProgress writes partial fields while the turn is processing
func (m *Manager) UpdateProgress(ctx context.Context, id uuid.UUID, progress entity.TurnProgress) error {
	changed, err := m.repo.UpdateProgress(ctx, id, progress)
	if err != nil {
		return fmt.Errorf("update turn progress: %w", err)
	}
	if changed {
		m.notifyByID(ctx, id)
	}
	return nil
}

// ListTurns returns the newest turns of a session first
func (m *Manager) ListTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]*entity.Turn, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	turns, err := m.repo.FindAll(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.OrderBy{Field: "turn_number", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, err
	}
	for i, t := range turns {
		if turns[i], err = m.surface(ctx, t); err != nil {
			return nil, err
		}
	}
	return turns, nil
}

// Conversation returns the last limit turns in chronological order
func (m *Manager) Conversation(ctx context.Context, sessionID uuid.UUID, limit int) ([]ConversationEntry, error) {
	if limit <= 0 {
		limit = DefaultConversationLimit
	}
	turns, err := m.ListTurns(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]ConversationEntry, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		entries = append(entries, ConversationEntry{
			TurnNumber:      turns[i].TurnNumber,
			InputText:       turns[i].InputText,
			NarrativeOutput: turns[i].NarrativeOutput,
			IsSimulated:     turns[i].IsSimulated,
		})
	}
	return entries, nil
}

// ActiveTurn returns the turn occupying a session, if any. Stale turns are
// finalized on the way, but one whose pipeline has not returned yet still
// occupies the session.
func (m *Manager) ActiveTurn(ctx context.Context, sessionID uuid.UUID) (*entity.Turn, error) {
	turn, err := m.repo.FindOne(ctx,
		specification.BySessionID{SessionID: sessionID},
		specification.ByStatus{Status: string(entity.TurnStatusProcessing)},
	)
	if err != nil {
		return nil, err
	}
	if turn != nil {
		if turn, err = m.surface(ctx, turn); err != nil {
			return nil, err
		}
		if turn.Status == entity.TurnStatusProcessing {
			return turn, nil
		}
	}

	id, ok := m.unwinding(sessionID)
	if !ok {
		return nil, nil
	}
	return m.repo.FindOne(ctx, specification.ByID{ID: id})
}

func (m *Manager) notifyByID(ctx context.Context, id uuid.UUID) {
	turn, err := m.repo.FindOne(ctx, specification.ByID{ID: id})
	if err != nil || turn == nil {
		return
	}
	m.notify(ctx, turn)
}

func (m *Manager) notify(ctx context.Context, turn *entity.Turn) {
	m.listenersMu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.listenersMu.RUnlock()

	for _, l := range listeners {
		l.TurnUpdated(ctx, turn)
	}
}

// Wait blocks until every scheduled turn has finished
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels running pipelines and waits for their turns to settle
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
