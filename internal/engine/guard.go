package engine

import (
	"context"
	"sync"
	"time"
)

// rootKey is the lock key used when the guard is not in per-entity mode.
const rootKey = ""

// Guard serializes mutating operations.
//
// By default one lock covers the whole storage root, so every mutation is
// totally ordered. In per-entity mode each entity id has its own lock while
// sequence assignment stays serialized by the store.
//
// Acquisition honours context cancellation while waiting; once acquired the
// critical section runs to completion. The guard is reentrant through the
// context: a context returned by Acquire already holds its key.
//
// Thread-safety: Guard is safe for concurrent use.
type Guard struct {
	perEntity bool
	onWait    func(time.Duration)

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

type heldKeys struct {
	guard *Guard
	keys  map[string]struct{}
}

type heldKeysCtxKey struct{}

// NewGuard creates a guard. perEntity selects one lock per entity id.
func NewGuard(perEntity bool) *Guard {
	return &Guard{
		perEntity: perEntity,
		locks:     make(map[string]*keyLock),
	}
}

func (g *Guard) key(entityID string) string {
	if g.perEntity {
		return entityID
	}
	return rootKey
}

// Acquire takes the lock for entityID and returns a context that holds it
// along with the release function. If ctx already holds the lock, Acquire
// returns immediately and release is a no-op.
func (g *Guard) Acquire(ctx context.Context, entityID string) (context.Context, func(), error) {
	key := g.key(entityID)
	held, _ := ctx.Value(heldKeysCtxKey{}).(heldKeys)
	if held.guard == g {
		if _, ok := held.keys[key]; ok {
			return ctx, func() {}, nil
		}
	}

	// A dead context never takes the lock, even when it is free.
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, err
	}

	lock := g.ref(key)
	start := time.Now()
	select {
	case lock.sem <- struct{}{}:
	case <-ctx.Done():
		g.unref(key)
		return ctx, func() {}, ctx.Err()
	}
	if g.onWait != nil {
		g.onWait(time.Since(start))
	}

	keys := map[string]struct{}{key: {}}
	if held.guard == g {
		for k := range held.keys {
			keys[k] = struct{}{}
		}
	}
	inner := context.WithValue(ctx, heldKeysCtxKey{}, heldKeys{guard: g, keys: keys})

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-lock.sem
			g.unref(key)
		})
	}
	return inner, release, nil
}

func (g *Guard) ref(key string) *keyLock {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock, ok := g.locks[key]
	if !ok {
		lock = &keyLock{sem: make(chan struct{}, 1)}
		g.locks[key] = lock
	}
	lock.refs++
	return lock
}

// unref drops idle per-entity locks so the map does not grow with every
// entity ever seen.
func (g *Guard) unref(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	lock := g.locks[key]
	lock.refs--
	if lock.refs == 0 {
		delete(g.locks, key)
	}
}
