package malloc

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// LockFreePool is a fixed-size free-list allocator safe for concurrent
// Allocate/Deallocate from many goroutines. Unlike Pool's intrusive free
// list, the free-list links live in a side array (links), never in the
// slots themselves: poisoning a freed slot's payload must not corrupt the
// pointer used to find the next free slot, and concurrent poison
// verification must not race with the link word a concurrent Allocate is
// reading.
//
// The free list is a Treiber stack: head is an atomic index (0 means
// "empty", because the side array has no natural nil value), links[i]
// holds "the slot that was below slot i when slot i was pushed". Pop and
// push retry under compare-and-swap; every retry bumps Metrics.CASFailures.
type LockFreePool struct {
	opts              PoolOptions
	slab              []byte
	links             []atomic.Int32 // links[i] = 1-based index of next free slot, 0 = end of list
	objectSize        int
	alignedObjectSize int
	capacity          int

	head atomicHead

	metrics   Metrics
	histogram *Histogram

	quarantineMu sync.Mutex
	quarantine   quarantineRing
}

// NewLockFreePool creates a LockFreePool of capacity fixed-size slots.
func NewLockFreePool(objectSize, capacity int, opts PoolOptions) *LockFreePool {
	if objectSize < 1 {
		objectSize = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	opts = opts.withDefaults()

	slab, aligned := newSlab(objectSize, capacity)
	p := &LockFreePool{
		opts:              opts,
		slab:              slab,
		links:             make([]atomic.Int32, capacity+1), // index 0 unused (reserved for "empty")
		objectSize:        objectSize,
		alignedObjectSize: aligned,
		capacity:          capacity,
	}
	if opts.QuarantineSize > 0 {
		p.quarantine = newQuarantineRing(opts.QuarantineSize)
	}
	if opts.SampleHistograms {
		p.histogram = NewHistogram(0, uint64(capacity), opts.HistogramBuckets)
	}

	// slot i (0-based) is represented in the free list as index i+1.
	// links[i+1] = i+2 chains slot i to slot i+1; the last slot's link is 0.
	for i := 0; i < capacity; i++ {
		if opts.PoisonOnFree {
			poisonTailOf(p.slab, p.alignedObjectSize, slotAt(p.slab, p.alignedObjectSize, i), opts.PoisonByte)
		}
		if i+1 < capacity {
			p.links[i+1].Store(int32(i + 2))
		}
	}
	p.head.store(1)
	return p
}

// Allocate pops a free slot via CAS retry, or returns nil if the pool is
// exhausted. Safe to call concurrently with other Allocate/Deallocate
// calls.
func (p *LockFreePool) Allocate() unsafe.Pointer {
	p.metrics.recordAllocCall()
	for {
		top := p.head.load()
		if top == 0 {
			p.metrics.recordAllocFailure()
			return nil
		}
		// The head is an index into a bounded, stable slab; anything
		// outside [1, capacity] means the free list has been corrupted.
		if top < 0 || int(top) > p.capacity {
			fatalf("pool: free-list head index %d out of range [1, %d]", top, p.capacity)
		}
		// The link load is sequenced after the head load; the slot that
		// published top as head stored links[top] before its CAS, so this
		// observes the matching link even across an ABA recurrence of top.
		next := p.links[top].Load()
		if p.head.cas(top, next) {
			p.metrics.recordAcquire()
			slot := slotAt(p.slab, p.alignedObjectSize, int(top-1))
			if p.opts.VerifyPoisonOnAlloc {
				verifyPoisonOf(p.slab, p.alignedObjectSize, slot, p.opts.PoisonByte)
			}
			if p.opts.ZeroOnAlloc {
				zeroSlotOf(p.slab, p.alignedObjectSize, slot)
			}
			if p.opts.OnAlloc != nil {
				p.opts.OnAlloc(slot, p.objectSize)
			}
			if p.histogram != nil {
				p.histogram.Record(uint64(p.metrics.inUse.Load()))
			}
			return slot
		}
		p.metrics.recordCASFailure()
	}
}

// Deallocate returns ptr to the free list (possibly via the quarantine).
// A nil ptr is a no-op. Safe to call concurrently.
func (p *LockFreePool) Deallocate(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	idx := int32(slotIndexOf(p.slab, p.alignedObjectSize, ptr)) + 1

	if p.opts.OnFree != nil {
		p.opts.OnFree(ptr, p.objectSize)
	}
	if p.opts.PoisonOnFree {
		poisonTailOf(p.slab, p.alignedObjectSize, ptr, p.opts.PoisonByte)
	}

	if p.quarantine.capacity() > 0 {
		p.quarantineMu.Lock()
		evicted, didEvict := p.quarantine.push(ptr)
		p.quarantineMu.Unlock()
		if didEvict {
			p.pushFreeIndex(int32(slotIndexOf(p.slab, p.alignedObjectSize, evicted)) + 1)
		}
	} else {
		p.pushFreeIndex(idx)
	}

	p.metrics.recordRelease()
	p.metrics.recordFreeCall()
	if p.histogram != nil {
		p.histogram.Record(uint64(p.metrics.inUse.Load()))
	}
}

// pushFreeIndex CAS-retries slot idx onto the top of the free list.
func (p *LockFreePool) pushFreeIndex(idx int32) {
	for {
		top := p.head.load()
		// The link store must land before the CAS that publishes idx as
		// head; reordering these breaks every concurrent pop of idx.
		p.links[idx].Store(top)
		if p.head.cas(top, idx) {
			return
		}
		p.metrics.recordCASFailure()
	}
}

// Used returns the number of slots currently allocated. Approximate under
// concurrent access: it reflects the metrics snapshot at the instant of
// the call, not a value linearized with any particular Allocate/Deallocate.
func (p *LockFreePool) Used() int64 { return p.metrics.inUse.Load() }

// Capacity returns the total number of slots.
func (p *LockFreePool) Capacity() int { return p.capacity }

// SlabBase returns the base address of the pool's backing slab.
func (p *LockFreePool) SlabBase() unsafe.Pointer {
	if len(p.slab) == 0 {
		return nil
	}
	return unsafe.Pointer(&p.slab[0])
}

// SlabBytes returns the total size of the pool's backing slab.
func (p *LockFreePool) SlabBytes() int { return len(p.slab) }

// Stats returns a snapshot of the pool's size and counters.
func (p *LockFreePool) Stats() PoolStats {
	s := p.metrics.Snapshot()
	return PoolStats{
		Capacity:          p.capacity,
		ObjectSize:        p.objectSize,
		AlignedObjectSize: p.alignedObjectSize,
		AllocCalls:        s.AllocCalls,
		FreeCalls:         s.FreeCalls,
		AllocFailures:     s.AllocFailures,
		CASFailures:       s.CASFailures,
		HighWatermark:     s.HighWatermark,
		InUse:             s.InUse,
	}
}
