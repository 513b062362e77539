package memory

import (
	"testing"
	"time"

	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLive(t *testing.T) *LiveSession {
	id := uuid.New()
	st := store.NewSessionState(id.String(), store.Participant{ID: "hero", Name: "Ada"}, &store.Location{ID: "mill", Name: "Old Mill"})
	ls, err := NewLiveSession(id, "player-1", st, logger.NewNopLogger())
	require.NoError(t, err)
	return ls
}

func TestSessionRegistry_PutGetEvict(t *testing.T) {
	r := NewSessionRegistry(time.Minute, logger.NewNopLogger())
	ls := newLive(t)

	r.Put(ls)
	got, ok := r.Get(ls.ID)
	require.True(t, ok)
	assert.Same(t, ls, got)
	assert.Equal(t, 1, r.Count())
	assert.Equal(t, []uuid.UUID{ls.ID}, r.IDs())

	r.Evict(ls.ID)
	_, ok = r.Get(ls.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Count())
}

func TestLiveSession_SnapshotOnlyMovesOnCommit(t *testing.T) {
	ls := newLive(t)

	ls.State().AppendDiscoveredFact("the mill is haunted")
	snap, err := ls.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.DiscoveredFacts)

	committed, err := ls.Commit()
	require.NoError(t, err)
	assert.Equal(t, []string{"the mill is haunted"}, committed.DiscoveredFacts)

	snap, err = ls.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"the mill is haunted"}, snap.DiscoveredFacts)

	// snapshots are private copies
	snap.DiscoveredFacts = append(snap.DiscoveredFacts, "x")
	again, err := ls.Snapshot()
	require.NoError(t, err)
	assert.Len(t, again.DiscoveredFacts, 1)
}

func TestLiveSession_ReplaceSwapsState(t *testing.T) {
	ls := newLive(t)
	before := ls.State()

	other := store.NewSessionState(ls.ID.String(), store.Participant{ID: "hero", Name: "Ada"}, &store.Location{ID: "woods", Name: "Dark Woods"})
	require.NoError(t, ls.Replace(other))

	assert.NotSame(t, before, ls.State())
	snap, err := ls.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "Dark Woods", snap.CurrentLocation.Name)
}

func TestLiveSession_ChainCounter(t *testing.T) {
	ls := newLive(t)

	ls.RecordTurn(true)
	ls.RecordTurn(true)
	assert.Equal(t, 2, ls.ChainedSimulated())

	ls.RecordTurn(false)
	assert.Equal(t, 0, ls.ChainedSimulated())
}

func TestLiveSession_RollbackDropsUncommitted(t *testing.T) {
	ls := newLive(t)
	ls.State().AppendDiscoveredFact("kept")
	_, err := ls.Commit()
	require.NoError(t, err)

	ls.State().AppendDiscoveredFact("dropped")
	require.NoError(t, ls.Rollback())

	assert.Equal(t, []string{"kept"}, ls.State().Session().DiscoveredFacts)
}
