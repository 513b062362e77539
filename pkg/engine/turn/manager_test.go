package turn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/model"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/internal/repository/implementation"
	"narrative-engine-be/pkg/database"
	"narrative-engine-be/pkg/engine/collaborator"
	"narrative-engine-be/pkg/engine/pipeline"
	"narrative-engine-be/pkg/engine/state"
	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error)

func (f runnerFunc) Run(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
	return f(ctx, exec)
}

func narrate(text string) runnerFunc {
	return func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		return &collaborator.NarrativeResult{NarrativeText: text}, nil
	}
}

type recordingListener struct {
	mu       sync.Mutex
	statuses []entity.TurnStatus
}

func (l *recordingListener) TurnUpdated(ctx context.Context, turn *entity.Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, turn.Status)
}

func newTestManager(t *testing.T, runner Runner) *Manager {
	t.Helper()
	db, err := database.NewSQLite(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	m := NewManager(implementation.NewTurnRepository(db), runner, time.Minute, logger.NewNopLogger())
	t.Cleanup(m.Wait)
	return m
}

func newJob(sessionID uuid.UUID, text string) Job {
	st := store.NewSessionState(sessionID.String(), store.Participant{ID: "hero", Name: "Ada"}, &store.Location{ID: "mill", Name: "Old Mill"})
	return Job{
		SessionID: sessionID,
		State:     state.NewManager(st, logger.NewNopLogger()),
		Input:     pipeline.Input{Text: text},
	}
}

func TestStartTurn_ProcessingThenCompleted(t *testing.T) {
	release := make(chan struct{})
	m := newTestManager(t, runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		<-release
		return &collaborator.NarrativeResult{NarrativeText: "You find a rusted key.", RevealedFacts: []string{"a key exists"}}, nil
	}))
	ctx := context.Background()

	started, err := m.StartTurn(ctx, newJob(uuid.New(), "search the room"))
	require.NoError(t, err)
	assert.Equal(t, 1, started.TurnNumber)

	during, err := m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.TurnStatusProcessing, during.Status)
	assert.Nil(t, during.NarrativeOutput)
	assert.Nil(t, during.CompletedAt)

	close(release)
	m.Wait()

	after, err := m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.TurnStatusCompleted, after.Status)
	require.NotNil(t, after.NarrativeOutput)
	assert.Equal(t, "You find a rusted key.", *after.NarrativeOutput)
	assert.Equal(t, []string{"a key exists"}, after.RevealedFacts)
	assert.NotNil(t, after.CompletedAt)
	assert.Nil(t, after.ErrorMessage)
}

func TestStartTurn_RunnerErrorMarksError(t *testing.T) {
	m := newTestManager(t, runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		return nil, errors.New("stage narrative-generation: model overloaded")
	}))
	ctx := context.Background()

	started, err := m.StartTurn(ctx, newJob(uuid.New(), "look"))
	require.NoError(t, err)
	m.Wait()

	turn, err := m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.TurnStatusError, turn.Status)
	require.NotNil(t, turn.ErrorMessage)
	assert.Contains(t, *turn.ErrorMessage, "model overloaded")
}

func TestTerminalStateIsImmutable(t *testing.T) {
	m := newTestManager(t, narrate("The door creaks."))
	ctx := context.Background()

	started, err := m.StartTurn(ctx, newJob(uuid.New(), "open the door"))
	require.NoError(t, err)
	m.Wait()

	changed, err := m.MarkError(ctx, started.Id, errors.New("late failure"))
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = m.CompleteTurn(ctx, started.Id, Final{NarrativeOutput: "rewritten"})
	require.NoError(t, err)
	assert.False(t, changed)

	intent := &store.IntentAnalysis{ActionType: "open"}
	require.NoError(t, m.UpdateProgress(ctx, started.Id, entity.TurnProgress{IntentAnalysis: intent}))

	turn, err := m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.TurnStatusCompleted, turn.Status)
	assert.Equal(t, "The door creaks.", *turn.NarrativeOutput)
	assert.Nil(t, turn.ErrorMessage)
	assert.Nil(t, turn.IntentAnalysis)
}

func TestMarkError_OnlyOnce(t *testing.T) {
	release := make(chan struct{})
	m := newTestManager(t, runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		<-release
		return &collaborator.NarrativeResult{NarrativeText: "too late"}, nil
	}))
	ctx := context.Background()

	started, err := m.StartTurn(ctx, newJob(uuid.New(), "wait"))
	require.NoError(t, err)

	first, err := m.MarkError(ctx, started.Id, errors.New("first"))
	require.NoError(t, err)
	second, err := m.MarkError(ctx, started.Id, errors.New("second"))
	require.NoError(t, err)
	assert.True(t, first)
	assert.False(t, second)

	close(release)
	m.Wait()

	turn, err := m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.TurnStatusError, turn.Status)
	assert.Equal(t, "first", *turn.ErrorMessage)
	assert.Nil(t, turn.NarrativeOutput)
}

func TestPanicEndsInError(t *testing.T) {
	m := newTestManager(t, runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		panic("nil map write")
	}))
	ctx := context.Background()

	started, err := m.StartTurn(ctx, newJob(uuid.New(), "break things"))
	require.NoError(t, err)
	m.Wait()

	turn, err := m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.TurnStatusError, turn.Status)
	assert.Contains(t, *turn.ErrorMessage, "nil map write")
}

func TestStaleTurnSurfacesAsError(t *testing.T) {
	release := make(chan struct{})
	m := newTestManager(t, runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		<-release
		exec.State.AppendDiscoveredFact("from a timed-out turn")
		return &collaborator.NarrativeResult{NarrativeText: "finally"}, nil
	}))
	ctx := context.Background()
	sessionID := uuid.New()

	var settled error
	job := newJob(sessionID, "wait forever")
	job.Settle = func(ctx context.Context, st *state.Manager, result *collaborator.NarrativeResult, runErr error) {
		settled = runErr
	}

	started, err := m.StartTurn(ctx, job)
	require.NoError(t, err)

	active, err := m.ActiveTurn(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, active)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	turn, err := m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.TurnStatusError, turn.Status)
	assert.Equal(t, StaleMessage, *turn.ErrorMessage)

	active, err = m.ActiveTurn(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, active, "the session stays occupied until the pipeline returns")
	assert.Equal(t, started.Id, active.Id)

	close(release)
	m.Wait()

	require.Error(t, settled)
	assert.Equal(t, StaleMessage, settled.Error())

	turn, err = m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.TurnStatusError, turn.Status, "a late completion does not resurrect the turn")

	active, err = m.ActiveTurn(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStaleTurnCancelsPipeline(t *testing.T) {
	m := newTestManager(t, runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	ctx := context.Background()

	started, err := m.StartTurn(ctx, newJob(uuid.New(), "hang"))
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.GetTurn(ctx, started.Id)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stale turn was not cancelled")
	}

	turn, err := m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	assert.Equal(t, StaleMessage, *turn.ErrorMessage)
}

func TestPanicStillSettlesWithError(t *testing.T) {
	m := newTestManager(t, runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		exec.State.AppendDiscoveredFact("half-applied")
		panic("index out of range")
	}))

	var settled error
	called := false
	job := newJob(uuid.New(), "break things")
	job.Settle = func(ctx context.Context, st *state.Manager, result *collaborator.NarrativeResult, runErr error) {
		called = true
		settled = runErr
		assert.Nil(t, result)
	}

	_, err := m.StartTurn(context.Background(), job)
	require.NoError(t, err)
	m.Wait()

	require.True(t, called)
	require.Error(t, settled)
	assert.Contains(t, settled.Error(), "index out of range")
}

func TestUpdateProgressWhileProcessing(t *testing.T) {
	m := newTestManager(t, nil)
	m.runner = runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		name := "Old Mill"
		err := m.UpdateProgress(ctx, exec.TurnID, entity.TurnProgress{
			IntentAnalysis: &store.IntentAnalysis{ActionType: "search"},
			LocationName:   &name,
		})
		return &collaborator.NarrativeResult{NarrativeText: "ok"}, err
	})
	ctx := context.Background()

	started, err := m.StartTurn(ctx, newJob(uuid.New(), "search"))
	require.NoError(t, err)
	m.Wait()

	turn, err := m.GetTurn(ctx, started.Id)
	require.NoError(t, err)
	require.NotNil(t, turn.IntentAnalysis)
	assert.Equal(t, "search", turn.IntentAnalysis.ActionType)
	assert.Equal(t, "Old Mill", *turn.LocationName)
}

func TestTurnNumbersArePerSession(t *testing.T) {
	m := newTestManager(t, narrate("ok"))
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	for i := 1; i <= 2; i++ {
		turn, err := m.StartTurn(ctx, newJob(a, "next"))
		require.NoError(t, err)
		assert.Equal(t, i, turn.TurnNumber)
		m.Wait()
	}
	other, err := m.StartTurn(ctx, newJob(b, "first"))
	require.NoError(t, err)
	assert.Equal(t, 1, other.TurnNumber)
}

func TestListAndConversation(t *testing.T) {
	m := newTestManager(t, runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		return &collaborator.NarrativeResult{NarrativeText: "re: " + exec.Input.Text}, nil
	}))
	ctx := context.Background()
	sid := uuid.New()

	for _, input := range []string{"one", "two", "three"} {
		_, err := m.StartTurn(ctx, newJob(sid, input))
		require.NoError(t, err)
		m.Wait()
	}

	turns, err := m.ListTurns(ctx, sid, 0)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, 3, turns[0].TurnNumber)

	conv, err := m.Conversation(ctx, sid, 2)
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, "two", conv[0].InputText)
	assert.Equal(t, "three", conv[1].InputText)
	assert.Equal(t, "re: three", *conv[1].NarrativeOutput)
}

func TestSettleRunsBeforeTerminal(t *testing.T) {
	m := newTestManager(t, narrate("ok"))
	ctx := context.Background()
	listener := &recordingListener{}
	m.AddListener(listener)

	var statusAtSettle entity.TurnStatus
	job := newJob(uuid.New(), "look")
	var turnID uuid.UUID
	job.Settle = func(ctx context.Context, st *state.Manager, result *collaborator.NarrativeResult, runErr error) {
		turn, err := m.GetTurn(ctx, turnID)
		if err == nil {
			statusAtSettle = turn.Status
		}
	}

	release := make(chan struct{})
	inner := m.runner
	m.runner = runnerFunc(func(ctx context.Context, exec *pipeline.Execution) (*collaborator.NarrativeResult, error) {
		<-release
		return inner.Run(ctx, exec)
	})

	started, err := m.StartTurn(ctx, job)
	require.NoError(t, err)
	turnID = started.Id
	close(release)
	m.Wait()

	assert.Equal(t, entity.TurnStatusProcessing, statusAtSettle)
	assert.Equal(t, []entity.TurnStatus{entity.TurnStatusProcessing, entity.TurnStatusCompleted}, listener.statuses)
}

func TestGetTurn_NotFound(t *testing.T) {
	m := newTestManager(t, narrate("ok"))
	_, err := m.GetTurn(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrTurnNotFound)
}
