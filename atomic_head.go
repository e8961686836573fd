package malloc

import "sync/atomic"

// atomicHead is the Treiber-stack top-of-free-list index used by
// LockFreePool. It is a thin named wrapper around atomic.Int32 rather than
// a bare field so the CAS-retry protocol reads the same way at every call
// site.
type atomicHead struct {
	v atomic.Int32
}

func (h *atomicHead) load() int32             { return h.v.Load() }
func (h *atomicHead) store(val int32)         { h.v.Store(val) }
func (h *atomicHead) cas(old, new int32) bool { return h.v.CompareAndSwap(old, new) }
