package malloc

import "unsafe"

// constructIn allocates sizeof(T) bytes aligned to alignof(T) from a and
// returns a zero-valued *T backed by that storage. Arena.Allocate always
// succeeds (or aborts fatally), so this never returns nil.
func constructIn[T any](a *Arena) *T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	align := int(unsafe.Alignof(zero))
	buf := a.Allocate(size, align)
	p := (*T)(unsafe.Pointer(&buf[0]))
	*p = zero
	return p
}

// ConstructInPool allocates from p and placement-constructs a zero-valued
// T, returning nil if the pool is exhausted. p's object size must be >=
// sizeof(T); SizeClassPool callers get this automatically since the
// bucket size is always >= the requested size.
func ConstructInPool[T any](p *Pool) *T {
	ptr := p.Allocate()
	if ptr == nil {
		return nil
	}
	var zero T
	v := (*T)(ptr)
	*v = zero
	return v
}

// DestroyInPool returns ptr's storage to p. Go has no explicit
// destructors; callers that need cleanup logic should run it themselves
// before calling DestroyInPool, matching the C++ original's
// ptr->~T() + deallocate(ptr) pairing (minus the implicit dtor call Go
// doesn't have).
func DestroyInPool[T any](p *Pool, ptr *T) {
	if ptr == nil {
		return
	}
	p.Deallocate(unsafe.Pointer(ptr))
}

// ConstructInLockFreePool is ConstructInPool for LockFreePool.
func ConstructInLockFreePool[T any](p *LockFreePool) *T {
	ptr := p.Allocate()
	if ptr == nil {
		return nil
	}
	var zero T
	v := (*T)(ptr)
	*v = zero
	return v
}

// DestroyInLockFreePool is DestroyInPool for LockFreePool.
func DestroyInLockFreePool[T any](p *LockFreePool, ptr *T) {
	if ptr == nil {
		return
	}
	p.Deallocate(unsafe.Pointer(ptr))
}

// ConstructInSizeClass allocates sizeof(T) bytes from s's appropriate
// bucket pool and returns a zero-valued *T, or nil if sizeof(T) exceeds
// s.MaxObjectSize().
func ConstructInSizeClass[T any](s *SizeClassPool) *T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	ptr := s.Allocate(size)
	if ptr == nil {
		return nil
	}
	v := (*T)(ptr)
	*v = zero
	return v
}

// DestroyInSizeClass returns ptr's storage to the bucket matching
// sizeof(T) — the caller must not have freed it through a different size
// class than the one ConstructInSizeClass used.
func DestroyInSizeClass[T any](s *SizeClassPool, ptr *T) {
	if ptr == nil {
		return
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	s.Deallocate(unsafe.Pointer(ptr), size)
}
