package cache

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMirror_NilClientIsNoop(t *testing.T) {
	m := NewStateMirror(nil, 0)
	ctx := context.Background()
	id := uuid.New()

	assert.False(t, m.Enabled())
	require.NoError(t, m.Save(ctx, id, []byte(`{}`)))

	st, err := m.Load(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, st)

	require.NoError(t, m.Delete(ctx, id))
}

func TestStateMirror_KeyIsNamespaced(t *testing.T) {
	id := uuid.MustParse("6f1c1d2e-8b7a-4d55-9a4e-1c2b3d4e5f60")
	assert.Equal(t, "narrative:session:6f1c1d2e-8b7a-4d55-9a4e-1c2b3d4e5f60", key(id))
}
