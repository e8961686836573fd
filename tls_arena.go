package malloc

import (
	"runtime"
	"sync"
)

// ThreadLocalArena hands out per-goroutine Arena instances, lazily created
// on first touch and reused across touches once returned. Go has no
// OS-thread-pinned TLS a library can observe — a goroutine can migrate
// between OS threads between any two instructions — so the wrapper keys
// instances on a sync.Pool, whose Get/Put already implement "lazily
// created, per-scheduling-unit state, reclaimed when unused" at runtime
// level.
//
// Callers bracket an operation with Get and the handle's Put, the way a
// request-scoped arena is used: Get borrows an idle instance (creating
// one with the configured options if none is idle on the current P), and
// Put returns it for the next borrower. Reuse on the common path comes
// from that explicit Put; a handle dropped without Put is returned by a
// GC finalizer as a backstop, but depending on the backstop forfeits the
// reuse this wrapper exists to provide.
type ThreadLocalArena struct {
	newOpts func() ArenaOptions
	pool    sync.Pool
}

// NewThreadLocalArena creates a wrapper whose per-goroutine instances are
// built with newOpts() at first touch.
func NewThreadLocalArena(newOpts func() ArenaOptions) *ThreadLocalArena {
	t := &ThreadLocalArena{newOpts: newOpts}
	t.pool.New = func() any {
		return NewArena(newOpts())
	}
	return t
}

// ArenaHandle is a borrowed thread-local Arena. Callers use the embedded
// *Arena directly and call Put when the operation ends.
type ArenaHandle struct {
	*Arena
	owner *ThreadLocalArena
}

// Get borrows the current goroutine's arena instance, creating it with
// the wrapper's configured options if this is the first touch.
func (t *ThreadLocalArena) Get() *ArenaHandle {
	a := t.pool.Get().(*Arena)
	h := &ArenaHandle{Arena: a, owner: t}
	runtime.SetFinalizer(h, func(h *ArenaHandle) { h.Put() })
	return h
}

// Put returns the borrowed instance for reuse by the next Get. The handle
// must not be used afterward: any pointers into the arena become invalid
// the moment the next borrower resets it. The arena's contents are left
// as-is; callers that want a clean epoch call Reset first. Put on an
// already-returned handle is a no-op.
func (h *ArenaHandle) Put() {
	if h.owner == nil {
		return
	}
	runtime.SetFinalizer(h, nil)
	owner := h.owner
	h.owner = nil
	owner.pool.Put(h.Arena)
}

// Reset resets the instance owned by h without releasing its chunks.
func (h *ArenaHandle) Reset() {
	h.Arena.Reset()
}
