package memory

import (
	"time"

	"narrative-engine-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const module = "SESSION_REGISTRY"

// SessionRegistry holds the live sessions of this process. Entries expire
// after idleTTL without access and are reloaded from the durable copy.
type SessionRegistry struct {
	cache   *cache.Cache
	idleTTL time.Duration
}

func NewSessionRegistry(idleTTL time.Duration, logger logger.ILogger) *SessionRegistry {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	c := cache.New(idleTTL, 10*time.Minute)
	c.OnEvicted(func(key string, _ interface{}) {
		logger.Debug(module, "Live session evicted", map[string]interface{}{
			"session_id": key,
		})
	})
	return &SessionRegistry{cache: c, idleTTL: idleTTL}
}

func (r *SessionRegistry) Put(session *LiveSession) {
	r.cache.Set(session.ID.String(), session, cache.DefaultExpiration)
}

// Get returns the live session and pushes its expiry forward
func (r *SessionRegistry) Get(id uuid.UUID) (*LiveSession, bool) {
	x, found := r.cache.Get(id.String())
	if !found {
		return nil, false
	}
	session := x.(*LiveSession)
	r.cache.Set(id.String(), session, cache.DefaultExpiration)
	return session, true
}

// Peek is Get without extending the entry's lifetime
func (r *SessionRegistry) Peek(id uuid.UUID) (*LiveSession, bool) {
	x, found := r.cache.Get(id.String())
	if !found {
		return nil, false
	}
	return x.(*LiveSession), true
}

func (r *SessionRegistry) Evict(id uuid.UUID) {
	r.cache.Delete(id.String())
}

func (r *SessionRegistry) Count() int {
	return r.cache.ItemCount()
}

// IDs lists the sessions currently held in memory
func (r *SessionRegistry) IDs() []uuid.UUID {
	items := r.cache.Items()
	ids := make([]uuid.UUID, 0, len(items))
	for key := range items {
		if id, err := uuid.Parse(key); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
