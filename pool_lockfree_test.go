package malloc

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"
)

func TestLockFreePoolAllocateExhaustion(t *testing.T) {
	p := NewLockFreePool(16, 4, PoolOptions{})

	var got []unsafe.Pointer
	for i := 0; i < 4; i++ {
		ptr := p.Allocate()
		require.NotNilf(t, ptr, "Allocate() #%d = nil, want non-nil", i)
		got = append(got, ptr)
	}
	assert.Nil(t, p.Allocate(), "Allocate() on exhausted pool should return nil")

	p.Deallocate(got[0])
	assert.NotNil(t, p.Allocate(), "Allocate() after Deallocate should succeed")
}

func TestLockFreePoolDebugStrongHygiene(t *testing.T) {
	p := NewLockFreePool(64, 32, DebugStrong(8))

	ptr := p.Allocate()
	require.NotNil(t, ptr)

	slot := unsafe.Slice((*byte)(ptr), p.alignedObjectSize)
	for i, b := range slot {
		require.Equalf(t, byte(0), b, "byte %d = %#x, want 0 (ZeroOnAlloc)", i, b)
	}

	// Scribble over the whole slot, then free and reallocate: the free
	// re-poisons the slot and parks it in the quarantine, so the next
	// Allocate hands out a different, still-poisoned slot; verification
	// passes and that slot is zeroed.
	for i := range slot {
		slot[i] = 0xCC
	}
	p.Deallocate(ptr)

	ptr2 := p.Allocate()
	require.NotNil(t, ptr2, "Allocate after Deallocate must succeed")
	slot2 := unsafe.Slice((*byte)(ptr2), p.alignedObjectSize)
	for i, b := range slot2 {
		require.Equalf(t, byte(0), b, "byte %d = %#x, want 0 after reallocation", i, b)
	}
}

func TestLockFreePoolDebugHygieneOverwriteDetected(t *testing.T) {
	opts := PoolOptions{PoisonOnFree: true, VerifyPoisonOnAlloc: true, PoisonByte: 0xA5}
	p := NewLockFreePool(32, 4, opts)

	ptr := p.Allocate()
	p.Deallocate(ptr)

	tail := tailBytesOf(p.slab, p.alignedObjectSize, ptr)
	tail[0] = 0xCC // simulate stray use-after-free write

	assert.Panics(t, func() { p.Allocate() }, "expected panic on poison mismatch at next Allocate")
}

func TestLockFreePoolDeallocateInvalidPointerAborts(t *testing.T) {
	p := NewLockFreePool(16, 4, PoolOptions{})

	var stray int
	assert.Panics(t, func() { p.Deallocate(unsafe.Pointer(&stray)) }, "expected panic on out-of-range pointer")
}

func TestLockFreePoolConcurrentMetrics(t *testing.T) {
	defer goleak.VerifyNone(t)

	const goroutines = 6
	const iterations = 4000
	p := NewLockFreePool(16, 64, PoolOptions{})

	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < iterations; j++ {
				ptr := p.Allocate()
				if ptr != nil {
					p.Deallocate(ptr)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	s := p.Stats()
	assert.EqualValues(t, goroutines*iterations, s.AllocCalls)
	assert.Equal(t, s.AllocCalls, s.FreeCalls, "every successful Allocate was paired with a Deallocate")
	assert.EqualValues(t, 0, s.InUse)
	assert.EqualValues(t, 0, s.AllocFailures, "capacity 64 >> 6 outstanding, so no Allocate may fail")
	assert.Greater(t, s.HighWatermark, int64(0))
	assert.LessOrEqual(t, s.HighWatermark, int64(64))
}

func TestLockFreePoolQuarantineIsSynchronized(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewLockFreePool(16, 32, PoolOptions{QuarantineSize: 8})

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for j := 0; j < 500; j++ {
				ptr := p.Allocate()
				if ptr != nil {
					p.Deallocate(ptr)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
