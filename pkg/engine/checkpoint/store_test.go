package checkpoint

import (
	"context"
	"fmt"
	"testing"
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/model"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/internal/repository/implementation"
	"narrative-engine-be/pkg/database"
	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.NewSQLite(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	return NewStore(implementation.NewCheckpointRepository(db), 3, logger.NewNopLogger())
}

func stateAt(sessionID uuid.UUID, loc store.Location) *store.SessionState {
	s := store.NewSessionState(sessionID.String(), store.Participant{ID: "hero", Name: "Ada", HP: 10, Sanity: 8}, &loc)
	return s
}

// frozenClock makes every save collide on the same instant
func frozenClock(s *Store) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }
}

func TestSave_DenormalizesSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := uuid.New()
	state := stateAt(sid, store.Location{ID: "mill", Name: "Old Mill", Description: "creaking boards"})
	state.GameDay = 2
	state.GameTime = "21:30"
	state.Temp.ActionOutcomes = []store.ActionOutcome{{Action: "search"}}

	id, err := s.Save(ctx, state, "", entity.CheckpointTypeManual, "before the storm")
	require.NoError(t, err)

	cp, err := s.LoadByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "Old Mill", cp.LocationName)
	assert.Equal(t, "creaking boards", cp.LocationDescriptor)
	assert.Equal(t, 2, cp.GameDay)
	assert.Equal(t, "21:30", cp.GameTime)
	assert.Equal(t, 10, cp.ProtagonistHp)
	assert.Equal(t, 8, cp.ProtagonistSanity)
	assert.Equal(t, "Day 2 21:30 - Old Mill", cp.Name)
	require.NotNil(t, cp.Description)
	assert.Equal(t, "before the storm", *cp.Description)

	restored, err := Decode(cp)
	require.NoError(t, err)
	assert.Empty(t, restored.Temp.ActionOutcomes)
	assert.Equal(t, "mill", restored.CurrentLocation.ID)
}

func TestSave_RejectsInvalidInput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, nil, "x", entity.CheckpointTypeAuto, "")
	assert.Error(t, err)

	_, err = s.Save(ctx, stateAt(uuid.New(), store.Location{Name: "A"}), "x", entity.CheckpointType("bogus"), "")
	assert.Error(t, err)

	bad := store.NewSessionState("not-a-uuid", store.Participant{ID: "hero"}, nil)
	_, err = s.Save(ctx, bad, "x", entity.CheckpointTypeAuto, "")
	assert.Error(t, err)
}

func TestSave_CreatedAtStrictlyIncreases(t *testing.T) {
	s := newTestStore(t)
	frozenClock(s)
	ctx := context.Background()
	sid := uuid.New()

	for i := 0; i < 4; i++ {
		_, err := s.Save(ctx, stateAt(sid, store.Location{Name: "A"}), fmt.Sprintf("cp-%d", i), entity.CheckpointTypeManual, "")
		require.NoError(t, err)
	}

	list, err := s.List(ctx, sid, 10)
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].CreatedAt.After(list[i].CreatedAt))
	}
	assert.Equal(t, "cp-3", list[0].Name)
}

func TestSave_AutoPruneKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	frozenClock(s)
	ctx := context.Background()
	sid := uuid.New()

	_, err := s.Save(ctx, stateAt(sid, store.Location{Name: "A"}), "manual-1", entity.CheckpointTypeManual, "")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		_, err := s.Save(ctx, stateAt(sid, store.Location{Name: "A"}), fmt.Sprintf("auto-%d", i), entity.CheckpointTypeAuto, "")
		require.NoError(t, err)
	}
	_, err = s.Save(ctx, stateAt(sid, store.Location{Name: "A"}), "transition-1", entity.CheckpointTypeTransition, "")
	require.NoError(t, err)

	list, err := s.List(ctx, sid, 50)
	require.NoError(t, err)

	var names []string
	for _, cp := range list {
		names = append(names, cp.Name)
	}
	assert.Equal(t, []string{"transition-1", "auto-5", "auto-4", "auto-3", "manual-1"}, names)
}

func TestPruneAuto_IsolatedPerSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, stateAt(a, store.Location{Name: "A"}), "", entity.CheckpointTypeAuto, "")
		require.NoError(t, err)
		_, err = s.Save(ctx, stateAt(b, store.Location{Name: "B"}), "", entity.CheckpointTypeAuto, "")
		require.NoError(t, err)
	}

	deleted, err := s.PruneAuto(ctx, a, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	listB, err := s.List(ctx, b, 10)
	require.NoError(t, err)
	assert.Len(t, listB, 3)
}

func TestFindLatestForLocation_ByName(t *testing.T) {
	s := newTestStore(t)
	frozenClock(s)
	ctx := context.Background()
	sid := uuid.New()
	mill := store.Location{ID: "mill", Name: "Old Mill"}

	_, err := s.Save(ctx, stateAt(sid, mill), "first", entity.CheckpointTypeTransition, "")
	require.NoError(t, err)
	_, err = s.Save(ctx, stateAt(sid, store.Location{ID: "road", Name: "Road"}), "elsewhere", entity.CheckpointTypeTransition, "")
	require.NoError(t, err)
	_, err = s.Save(ctx, stateAt(sid, mill), "second", entity.CheckpointTypeTransition, "")
	require.NoError(t, err)

	cp, err := s.FindLatestForLocation(ctx, sid, mill)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "second", cp.Name)
}

func TestFindLatestForLocation_FallsBackToID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := uuid.New()

	_, err := s.Save(ctx, stateAt(sid, store.Location{ID: "mill", Name: "Ruined Mill"}), "renamed", entity.CheckpointTypeTransition, "")
	require.NoError(t, err)

	cp, err := s.FindLatestForLocation(ctx, sid, store.Location{ID: "mill", Name: "Old Mill"})
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "renamed", cp.Name)
}

func TestFindLatestForLocation_FirstVisit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cp, err := s.FindLatestForLocation(ctx, uuid.New(), store.Location{ID: "cellar", Name: "Cellar"})
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestRestoreAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sid := uuid.New()
	state := stateAt(sid, store.Location{ID: "mill", Name: "Old Mill"})
	state.DiscoveredFacts = []string{"the miller lies"}

	id, err := s.Save(ctx, state, "save", entity.CheckpointTypeManual, "")
	require.NoError(t, err)

	restored, cp, err := s.Restore(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, cp.Id)
	assert.Equal(t, []string{"the miller lies"}, restored.DiscoveredFacts)

	ok, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = s.Restore(ctx, id)
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}
