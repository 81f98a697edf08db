// ABOUTME: Keyed advisory locks plus a TTL memo of recently created CRM records
// ABOUTME: Used by serialized dedupe mode to close the search-then-create race in-process

package dedupe

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// keySep cannot appear in names typed by users.
const keySep = "\x1f"

// Key builds a guard key from a tenant fingerprint, an entity kind and the identity fields.
func Key(tenant, kind string, fields ...string) string {
	parts := make([]string, 0, len(fields)+2)
	parts = append(parts, tenant, kind)
	parts = append(parts, fields...)
	return strings.Join(parts, keySep)
}

// keyLock is a mutex shared by every caller currently holding or waiting on one key.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Guard hands out per-key locks and remembers created records.
// Lock entries live only while someone holds or waits on them.
type Guard struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	memo  *expirable.LRU[string, any]
}

// NewGuard creates a guard whose memo keeps up to size records for ttl.
func NewGuard(ttl time.Duration, size int) *Guard {
	if size <= 0 {
		size = 10_000
	}
	return &Guard{
		locks: make(map[string]*keyLock),
		memo:  expirable.NewLRU[string, any](size, nil, ttl),
	}
}

// Lock blocks until key is free and returns the function that releases it.
func (g *Guard) Lock(key string) (unlock func()) {
	g.mu.Lock()
	kl, ok := g.locks[key]
	if !ok {
		kl = &keyLock{}
		g.locks[key] = kl
	}
	kl.refs++
	g.mu.Unlock()

	kl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.mu.Unlock()
			g.mu.Lock()
			kl.refs--
			if kl.refs == 0 {
				delete(g.locks, key)
			}
			g.mu.Unlock()
		})
	}
}

// Remember stores a created record under every given key.
func (g *Guard) Remember(value any, keys ...string) {
	for _, k := range keys {
		g.memo.Add(k, value)
	}
}

// Recall returns a record remembered under key, if it has not expired.
func (g *Guard) Recall(key string) (any, bool) {
	return g.memo.Get(key)
}

// heldKeys reports how many keys currently have lock entries.
func (g *Guard) heldKeys() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
