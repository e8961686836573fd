package malloc

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// SizeClassPoolOptions configures a SizeClassPool.
type SizeClassPoolOptions struct {
	// MaxObjectSize bounds the largest request Allocate will service;
	// requests above it return nil rather than growing an unbounded
	// bucket table.
	MaxObjectSize int

	// ObjectsPerBucket is the capacity each lazily-created bucket pool is
	// given.
	ObjectsPerBucket int

	// LockFree selects LockFreePool buckets instead of Pool buckets, for
	// use from multiple goroutines.
	LockFree bool

	// PoolOptions is forwarded to every bucket pool created.
	PoolOptions PoolOptions
}

const (
	DefaultMaxObjectSize    = 1 << 16
	DefaultObjectsPerBucket = 256
)

func (o SizeClassPoolOptions) withDefaults() SizeClassPoolOptions {
	if o.MaxObjectSize <= 0 {
		o.MaxObjectSize = DefaultMaxObjectSize
	}
	if o.ObjectsPerBucket <= 0 {
		o.ObjectsPerBucket = DefaultObjectsPerBucket
	}
	return o
}

// SizeClassPool dispatches variable-size allocation requests to one of a
// family of fixed-size pools, keyed by the next power of two at or above
// the requested size. Pools are created lazily on first request for a
// class.
//
// The bucket table is a copy-on-write map published through an
// atomic.Pointer (grounded on the donor's atomic.Pointer[numaMap]
// snapshot idiom): the hot path — a class that already has a
// materialized bucket — loads the current map with no mutex involved at
// all. Only the cold path (first request for a new class) takes mu,
// builds a new map with the added bucket, and publishes it; the bucket's
// own Allocate/Deallocate always runs outside the lock.
type SizeClassPool struct {
	opts SizeClassPoolOptions

	mu        sync.Mutex // serializes cold-path bucket creation only
	buckets   atomic.Pointer[map[int]*Pool]
	lfBuckets atomic.Pointer[map[int]*LockFreePool]
}

// NewSizeClassPool creates a SizeClassPool per opts.
func NewSizeClassPool(opts SizeClassPoolOptions) *SizeClassPool {
	opts = opts.withDefaults()
	s := &SizeClassPool{opts: opts}
	if opts.LockFree {
		m := make(map[int]*LockFreePool)
		s.lfBuckets.Store(&m)
	} else {
		m := make(map[int]*Pool)
		s.buckets.Store(&m)
	}
	return s
}

// MaxObjectSize returns the configured upper bound on serviceable
// requests.
func (s *SizeClassPool) MaxObjectSize() int { return s.opts.MaxObjectSize }

func (s *SizeClassPool) classFor(size int) int {
	if size < 1 {
		size = 1
	}
	return int(nextPow2(uintptr(size)))
}

// Allocate rounds size up to the next power of two and delegates to the
// matching bucket pool (creating it on first use), returning nil if size
// exceeds MaxObjectSize or the bucket is exhausted.
func (s *SizeClassPool) Allocate(size int) unsafe.Pointer {
	if size > s.opts.MaxObjectSize {
		return nil
	}
	class := s.classFor(size)
	if s.opts.LockFree {
		return s.lockFreeBucket(class).Allocate()
	}
	return s.bucket(class).Allocate()
}

// Deallocate returns ptr to the bucket matching size — the caller must
// supply the same size used at the corresponding Allocate call.
func (s *SizeClassPool) Deallocate(ptr unsafe.Pointer, size int) {
	if ptr == nil {
		return
	}
	class := s.classFor(size)
	if s.opts.LockFree {
		s.lockFreeBucket(class).Deallocate(ptr)
		return
	}
	s.bucket(class).Deallocate(ptr)
}

func (s *SizeClassPool) bucket(class int) *Pool {
	if m := *s.buckets.Load(); m[class] != nil {
		return m[class]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := *s.buckets.Load()
	if p, ok := cur[class]; ok {
		return p
	}
	p := NewPool(class, s.opts.ObjectsPerBucket, s.opts.PoolOptions)
	next := make(map[int]*Pool, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[class] = p
	s.buckets.Store(&next)
	return p
}

func (s *SizeClassPool) lockFreeBucket(class int) *LockFreePool {
	if m := *s.lfBuckets.Load(); m[class] != nil {
		return m[class]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := *s.lfBuckets.Load()
	if p, ok := cur[class]; ok {
		return p
	}
	p := NewLockFreePool(class, s.opts.ObjectsPerBucket, s.opts.PoolOptions)
	next := make(map[int]*LockFreePool, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[class] = p
	s.lfBuckets.Store(&next)
	return p
}

// BucketCount returns the number of distinct size classes materialized so
// far.
func (s *SizeClassPool) BucketCount() int {
	if s.opts.LockFree {
		return len(*s.lfBuckets.Load())
	}
	return len(*s.buckets.Load())
}
