package malloc

import (
	"runtime"
	"sync"
)

// ThreadLocalPool hands out per-goroutine Pool instances, mirroring
// ThreadLocalArena's borrow/return realization of a thread-local
// instantiation pattern: Get borrows an idle instance (building one
// lazily at first touch), the handle's Put returns it for the next
// borrower.
type ThreadLocalPool struct {
	objectSize int
	capacity   int
	newOpts    func() PoolOptions
	pool       sync.Pool
}

// NewThreadLocalPool creates a wrapper whose per-goroutine instances are
// NewPool(objectSize, capacity, newOpts()) built lazily at first touch.
func NewThreadLocalPool(objectSize, capacity int, newOpts func() PoolOptions) *ThreadLocalPool {
	t := &ThreadLocalPool{objectSize: objectSize, capacity: capacity, newOpts: newOpts}
	t.pool.New = func() any {
		return NewPool(objectSize, capacity, newOpts())
	}
	return t
}

// PoolHandle is a borrowed thread-local Pool. Callers use the embedded
// *Pool directly and call Put when the operation ends.
type PoolHandle struct {
	*Pool
	owner *ThreadLocalPool
}

// Get borrows the current goroutine's pool instance, creating it at first
// touch. Overriding the wrapper's options after instances already exist
// has no effect on those instances — only newly created ones pick up a
// changed newOpts closure.
func (t *ThreadLocalPool) Get() *PoolHandle {
	p := t.pool.Get().(*Pool)
	h := &PoolHandle{Pool: p, owner: t}
	runtime.SetFinalizer(h, func(h *PoolHandle) { h.Put() })
	return h
}

// Put returns the borrowed instance for reuse by the next Get. The handle
// must not be used afterward; slots still held by the caller remain valid
// (the pool's slab is stable) but must be deallocated through whichever
// handle currently owns the instance. Put on an already-returned handle
// is a no-op.
func (h *PoolHandle) Put() {
	if h.owner == nil {
		return
	}
	runtime.SetFinalizer(h, nil)
	owner := h.owner
	h.owner = nil
	owner.pool.Put(h.Pool)
}
