package unitofwork

import (
	"context"
	"errors"
	"testing"
	"time"

	"narrative-engine-be/internal/entity"
	"narrative-engine-be/internal/model"
	"narrative-engine-be/internal/repository/specification"
	"narrative-engine-be/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFactory(t *testing.T) RepositoryFactory {
	t.Helper()
	db, err := database.NewSQLite(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	return NewRepositoryFactory(db)
}

func newSession() *entity.GameSession {
	return &entity.GameSession{
		Id:           uuid.New(),
		PlayerId:     "player-1",
		Title:        "Ada at Old Mill",
		Status:       entity.GameSessionActive,
		CurrentState: []byte(`{}`),
		CreatedAt:    time.Now().UTC(),
	}
}

func TestTransaction_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	gs := newSession()

	err := f.Transaction(ctx, func(uow UnitOfWork) error {
		return uow.GameSessionRepository().Create(ctx, gs)
	})
	require.NoError(t, err)

	found, err := f.NewUnitOfWork(ctx).GameSessionRepository().FindOne(ctx, specification.ByID{ID: gs.Id})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Ada at Old Mill", found.Title)
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	f := newFactory(t)
	gs := newSession()
	boom := errors.New("boom")

	err := f.Transaction(ctx, func(uow UnitOfWork) error {
		if err := uow.GameSessionRepository().Create(ctx, gs); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	found, err := f.NewUnitOfWork(ctx).GameSessionRepository().FindOne(ctx, specification.ByID{ID: gs.Id})
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUnitOfWork_CommitWithoutBegin(t *testing.T) {
	uow := newFactory(t).NewUnitOfWork(context.Background())

	assert.ErrorIs(t, uow.Commit(), ErrNoTransaction)
	assert.ErrorIs(t, uow.Rollback(), ErrNoTransaction)
}

func TestUnitOfWork_BeginTwice(t *testing.T) {
	ctx := context.Background()
	uow := newFactory(t).NewUnitOfWork(ctx)

	require.NoError(t, uow.Begin(ctx))
	assert.ErrorIs(t, uow.Begin(ctx), ErrTransactionActive)
	require.NoError(t, uow.Rollback())
}
