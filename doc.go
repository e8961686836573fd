// Package malloc implements a toolkit of custom memory allocators for
// latency-sensitive workloads, where the general-purpose Go allocator and
// garbage collector are unacceptable on the hot path.
//
// # Overview
//
// The package provides two allocation engines:
//
//   - Arena: a chunked bump allocator. Hands out memory by advancing a
//     cursor within a chunk, grows by acquiring additional chunks on
//     demand, and frees only in bulk via Reset or Release. Suitable for
//     request-scoped or epoch-scoped allocation where individual object
//     lifetimes don't matter.
//   - Pool / LockFreePool: fixed-size object pools backed by a
//     pre-allocated slab and a free list. Pool is single-threaded;
//     LockFreePool is safe for concurrent use from multiple goroutines via
//     an atomic LIFO free list.
//
// SizeClassPool routes variable-sized requests to a family of fixed-size
// pools keyed by the next power of two. ThreadLocalArena and
// ThreadLocalPool hand out per-goroutine instances that avoid cross-thread
// contention on the common path: Get borrows an instance, the handle's Put
// returns it for reuse by the next Get.
//
// # Basic usage
//
//	a := malloc.NewArena(malloc.ArenaOptions{})
//	defer a.Release()
//
//	buf := a.Allocate(128, 8)
//	p := malloc.Construct[MyStruct](a)
//
//	a.Reset() // O(chunk count), keeps chunks for reuse
//
// # Thread safety
//
// Arena and Pool are not goroutine-safe; each is owned by a single logical
// context at a time. LockFreePool and Recycler are safe for concurrent
// use. ThreadLocalArena and ThreadLocalPool lend each borrower an
// instance created lazily on first touch and reused across Get/Put
// cycles; the handle owns the instance until Put.
//
// # Debug hygiene
//
// Pool and LockFreePool support an opt-in hygiene pipeline: zeroing on
// allocate, poisoning on free, poison verification on allocate, and a
// bounded quarantine that delays slot reuse to widen the window for
// use-after-free detection. See PoolOptions, DebugStrong, and
// MinimalOverhead.
//
// # Metrics
//
// Every pool tracks allocation counts, failures, in-use count, and
// high-watermark via atomic counters, snapshot-able with
// Pool.Stats / LockFreePool.Stats. Metrics can optionally be exported as
// a Prometheus collector via NewPrometheusCollector.
package malloc
